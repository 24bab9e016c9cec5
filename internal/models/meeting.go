package models

import (
	"time"
)

// Meeting is the history record of one live session instance of a Room on
// the remote server. A record is created when a create call succeeds and is
// updated by reconciliation as remote truth is fetched.
type Meeting struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id,omitempty"`

	Running bool `json:"running"`
	Ended   bool `json:"ended"`

	// CreateTime is the remote server's creation timestamp (epoch millis),
	// zero until the first successful reconciliation.
	CreateTime int64     `json:"create_time,omitempty"`
	FinishTime time.Time `json:"finish_time,omitempty"`

	// Creator identity extracted from remote metadata; unset when the
	// metadata is absent or malformed.
	CreatorID   string `json:"creator_id,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MarkEnded transitions the meeting to its terminal state. Safe to call on a
// meeting that already ended; the original finish time is kept.
func (m *Meeting) MarkEnded(at time.Time) {
	if m.Ended {
		return
	}
	m.Ended = true
	m.Running = false
	m.FinishTime = at
}

// Attendee is a per-fetch snapshot of a participant in a live meeting,
// parsed from the remote response. Never persisted.
type Attendee struct {
	UserID      string `json:"user_id"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	IsPresenter bool   `json:"is_presenter"`
}
