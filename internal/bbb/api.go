// Package bbb defines the contract to the BigBlueButton conferencing server
// and a thin HTTP client implementing it.
package bbb

import (
	"context"
	"errors"

	"github.com/openconf/brooms/internal/models"
)

// Common errors returned by implementations and the server selector.
var (
	// ErrMeetingNotFound signals the remote server no longer knows the
	// meeting. Callers treat this as authoritative evidence the meeting
	// ended, not as a transport failure.
	ErrMeetingNotFound = errors.New("meeting not found on server")

	// ErrServerRequired signals no conferencing server is configured for
	// the requested operation. Fatal to the operation.
	ErrServerRequired = errors.New("no conferencing server configured")
)

// MeetingInfo is the remote server's view of a live meeting.
type MeetingInfo struct {
	MeetingID            string
	Running              bool
	CreateTime           int64
	ParticipantCount     int
	ModeratorCount       int
	HasBeenForciblyEnded bool
	EndTime              string
	Attendees            []models.Attendee
	Metadata             map[string]string
}

// CreateResponse is the remote server's answer to a create call.
type CreateResponse struct {
	MeetingID   string
	ModeratorPW string
	AttendeePW  string
	VoiceBridge string
}

// API is the capability surface of a conferencing server. Implementations
// own transport concerns including timeouts; callers never retry internally.
type API interface {
	CreateMeeting(ctx context.Context, name, meetingID string, opts CreateOptions) (*CreateResponse, error)
	GetMeetingInfo(ctx context.Context, meetingID, password string) (*MeetingInfo, error)
	IsMeetingRunning(ctx context.Context, meetingID string) (bool, error)
	EndMeeting(ctx context.Context, meetingID, password string) error
	JoinMeetingURL(meetingID, fullName, password string, opts JoinOptions) (string, error)
}

// Operation names an API call for server selection purposes.
type Operation string

const (
	OpCreate  Operation = "create"
	OpJoin    Operation = "join"
	OpEnd     Operation = "end"
	OpInfo    Operation = "info"
	OpRunning Operation = "running"
)

// ServerSelector picks the server handling an operation for a room. A static
// single-server deployment returns the same API for every call; pooled
// deployments may route by room. Returns ErrServerRequired when nothing is
// configured.
type ServerSelector interface {
	ServerFor(ctx context.Context, room *models.Room, op Operation) (API, error)
}

// StaticSelector always returns the one configured server.
type StaticSelector struct {
	Server API
}

// ServerFor implements ServerSelector.
func (s *StaticSelector) ServerFor(ctx context.Context, room *models.Room, op Operation) (API, error) {
	if s == nil || s.Server == nil {
		return nil, ErrServerRequired
	}
	return s.Server, nil
}
