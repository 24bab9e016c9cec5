package service

import (
	"context"
	"log"
	"strings"

	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/repository"
)

// DialNumbers allocates unique dial-in numbers for rooms.
type DialNumbers struct {
	repo repository.Repository
}

// NewDialNumbers creates an allocator over the given store.
func NewDialNumbers(repo repository.Repository) *DialNumbers {
	return &DialNumbers{repo: repo}
}

// Generate produces the next dial number. With at least one number already
// assigned, the result is the successor of the stored maximum and the
// pattern is ignored; otherwise every 'x' placeholder in the pattern is
// substituted with '0'. An empty pattern yields an empty number.
func (d *DialNumbers) Generate(ctx context.Context, pattern string) (string, error) {
	if pattern == "" {
		return "", nil
	}

	max, err := d.repo.MaxDialNumber(ctx)
	if err != nil {
		return "", err
	}
	if max != "" {
		return nextDialNumber(max), nil
	}
	return strings.ReplaceAll(pattern, "x", "0"), nil
}

// Assign generates a dial number and persists it on the room. Returns false
// when generation or persistence (including validation) fails.
func (d *DialNumbers) Assign(ctx context.Context, room *models.Room, pattern string) bool {
	number, err := d.Generate(ctx, pattern)
	if err != nil {
		log.Printf("Error generating dial number: %v", err)
		return false
	}
	if number == "" {
		return false
	}

	room.DialNumber = number
	if err := d.repo.SaveRoom(ctx, room); err != nil {
		log.Printf("Error saving dial number: %v", err)
		return false
	}
	return true
}

// nextDialNumber is the string successor: the rightmost alphanumeric is
// incremented with carry (digits wrap 9 to 0, letters z to a and Z to A);
// non-alphanumerics are skipped over by the carry. A carry past the leftmost
// position prepends a matching character. Fixed policy for the otherwise
// ambiguous successor of non-numeric dial patterns.
func nextDialNumber(number string) string {
	chars := []byte(number)
	for i := len(chars) - 1; i >= 0; i-- {
		switch c := chars[i]; {
		case c >= '0' && c < '9', c >= 'a' && c < 'z', c >= 'A' && c < 'Z':
			chars[i] = c + 1
			return string(chars)
		case c == '9':
			chars[i] = '0'
		case c == 'z':
			chars[i] = 'a'
		case c == 'Z':
			chars[i] = 'A'
		}
		// Anything else passes the carry leftwards unchanged
	}

	// Carried past the left edge: prepend based on the leading character
	switch first := chars[0]; {
	case first >= 'a' && first <= 'z':
		return "a" + string(chars)
	case first >= 'A' && first <= 'Z':
		return "A" + string(chars)
	default:
		return "1" + string(chars)
	}
}
