package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Field limits enforced at persistence time.
const (
	MaxMeetingIDLength = 100
	MaxNameLength      = 250
	MaxWelcomeLength   = 250
	MaxKeyLength       = 16
)

// ValidationError describes a field that failed validation. Store
// implementations return it (wrapped) from save operations so callers can
// distinguish bad input from infrastructure failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Room is the durable configuration for a reusable meeting space on a
// BigBlueButton server. A room accumulates Meeting records over its life,
// one per conference session.
type Room struct {
	ID           string `json:"id"`
	MeetingID    string `json:"meeting_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Welcome      string `json:"welcome,omitempty"`
	Private      bool   `json:"private"`
	Record       bool   `json:"record"`
	Duration     int    `json:"duration"`
	ModeratorKey string `json:"moderator_key,omitempty"`
	AttendeeKey  string `json:"attendee_key,omitempty"`

	// API passwords are ephemeral credentials issued per meeting instance;
	// the conferencing server may replace them on each create call.
	ModeratorPW string `json:"moderator_pw,omitempty"`
	AttendeePW  string `json:"attendee_pw,omitempty"`

	DialNumber      string `json:"dial_number,omitempty"`
	VoiceBridge     string `json:"voice_bridge,omitempty"`
	LogoutURL       string `json:"logout_url,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`

	ModeratorOnlyMessage    string `json:"moderator_only_message,omitempty"`
	AutoStartRecording      bool   `json:"auto_start_recording"`
	AllowStartStopRecording bool   `json:"allow_start_stop_recording"`

	// Transient state populated from the remote server per fetch; never
	// persisted.
	ParticipantCount     int               `json:"-"`
	ModeratorCount       int               `json:"-"`
	CurrentAttendees     []Attendee        `json:"-"`
	HasBeenForciblyEnded bool              `json:"-"`
	EndTime              string            `json:"-"`
	FullLogoutURL        string            `json:"-"`
	RequestHeaders       map[string]string `json:"-"`
}

var (
	slugInvalidPattern  = regexp.MustCompile(`[^a-z0-9-]`)
	slugCollapsePattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// DeriveSlug produces a URL-safe token from a room name: lower-cased, runs of
// non-alphanumerics collapsed to single dashes, leading/trailing dashes
// trimmed.
func DeriveSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugCollapsePattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Validate checks the room's durable fields against the documented limits.
// It derives the slug from the name when the slug is absent.
func (r *Room) Validate() error {
	if r.MeetingID == "" || len(r.MeetingID) > MaxMeetingIDLength {
		return &ValidationError{Field: "meeting_id", Reason: fmt.Sprintf("must be 1-%d characters", MaxMeetingIDLength)}
	}
	if r.Name == "" || len(r.Name) > MaxNameLength {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("must be 1-%d characters", MaxNameLength)}
	}
	if r.Slug == "" {
		r.Slug = DeriveSlug(r.Name)
	}
	if r.Slug == "" || slugInvalidPattern.MatchString(r.Slug) {
		return &ValidationError{Field: "slug", Reason: "must be a non-empty URL-safe token"}
	}
	if len(r.Welcome) > MaxWelcomeLength {
		return &ValidationError{Field: "welcome", Reason: fmt.Sprintf("must be at most %d characters", MaxWelcomeLength)}
	}
	if r.Duration < 0 {
		return &ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	if len(r.ModeratorKey) > MaxKeyLength {
		return &ValidationError{Field: "moderator_key", Reason: fmt.Sprintf("must be at most %d characters", MaxKeyLength)}
	}
	if len(r.AttendeeKey) > MaxKeyLength {
		return &ValidationError{Field: "attendee_key", Reason: fmt.Sprintf("must be at most %d characters", MaxKeyLength)}
	}
	if r.Private && (r.ModeratorKey == "" || r.AttendeeKey == "") {
		return &ValidationError{Field: "keys", Reason: "private rooms require moderator and attendee keys"}
	}
	return nil
}
