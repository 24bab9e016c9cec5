// Package utils holds small helpers shared across the service.
package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxLogStringLength defines the maximum length for user-provided strings in logs
const MaxLogStringLength = 200

// nonPrintable matches anything that is not a letter, number, punctuation,
// symbol or whitespace.
var nonPrintable = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)

// SanitizeLogString sanitizes a user-controlled string for safe logging:
// control characters become spaces, the length is capped, and format
// specifiers are escaped so the value cannot inject log lines.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	if len(input) > MaxLogStringLength {
		input = input[:MaxLogStringLength] + "... (truncated)"
	}

	// Normalize CRLF first so it collapses to a single space
	input = strings.ReplaceAll(input, "\r\n", "\n")

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	sanitized = strings.ReplaceAll(sanitized, "%", "%%")

	return nonPrintable.ReplaceAllString(sanitized, "")
}
