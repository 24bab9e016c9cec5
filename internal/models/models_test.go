package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/openconf/brooms/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRoom() *models.Room {
	return &models.Room{
		ID:        "room1",
		MeetingID: "meeting-abc",
		Name:      "Weekly Sync",
	}
}

func TestDeriveSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Weekly Sync", "weekly-sync"},
		{"Team (Platform) -- Standup!", "team-platform-standup"},
		{"  Löwen  ", "l-wen"},
		{"---", ""},
		{"already-a-slug", "already-a-slug"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.DeriveSlug(tt.name), "name %q", tt.name)
	}
}

func TestValidateDerivesSlug(t *testing.T) {
	room := validRoom()
	require.NoError(t, room.Validate())
	assert.Equal(t, "weekly-sync", room.Slug)

	// An explicit slug is kept
	room = validRoom()
	room.Slug = "custom"
	require.NoError(t, room.Validate())
	assert.Equal(t, "custom", room.Slug)
}

func TestValidateRejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Room)
		field  string
	}{
		{"empty meeting ID", func(r *models.Room) { r.MeetingID = "" }, "meeting_id"},
		{"long meeting ID", func(r *models.Room) { r.MeetingID = strings.Repeat("x", models.MaxMeetingIDLength+1) }, "meeting_id"},
		{"empty name", func(r *models.Room) { r.Name = "" }, "name"},
		{"long name", func(r *models.Room) { r.Name = strings.Repeat("x", models.MaxNameLength+1) }, "name"},
		{"unsafe slug", func(r *models.Room) { r.Slug = "Has Spaces" }, "slug"},
		{"unresolvable slug", func(r *models.Room) { r.Name = "!!!" }, "slug"},
		{"long welcome", func(r *models.Room) { r.Welcome = strings.Repeat("x", models.MaxWelcomeLength+1) }, "welcome"},
		{"negative duration", func(r *models.Room) { r.Duration = -1 }, "duration"},
		{"long moderator key", func(r *models.Room) { r.ModeratorKey = strings.Repeat("k", models.MaxKeyLength+1) }, "moderator_key"},
		{"long attendee key", func(r *models.Room) { r.AttendeeKey = strings.Repeat("k", models.MaxKeyLength+1) }, "attendee_key"},
		{"private without keys", func(r *models.Room) { r.Private = true }, "keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := validRoom()
			tt.mutate(room)

			err := room.Validate()
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidatePrivateRoomWithKeys(t *testing.T) {
	room := validRoom()
	room.Private = true
	room.ModeratorKey = "modkey"
	room.AttendeeKey = "attkey"
	assert.NoError(t, room.Validate())
}

func TestMarkEnded(t *testing.T) {
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	meeting := &models.Meeting{ID: "m1", Running: true}

	meeting.MarkEnded(first)
	assert.True(t, meeting.Ended)
	assert.False(t, meeting.Running)
	assert.Equal(t, first, meeting.FinishTime)

	// Ending again keeps the original finish time
	meeting.MarkEnded(first.Add(time.Hour))
	assert.Equal(t, first, meeting.FinishTime)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "moderator", models.RoleModerator.String())
	assert.Equal(t, "attendee", models.RoleAttendee.String())
	assert.Equal(t, "guest", models.RoleGuest.String())
	assert.Equal(t, "none", models.RoleNone.String())
}

func TestRoomOwner(t *testing.T) {
	owner := models.RoomOwner("room1")
	assert.Equal(t, models.MetadataOwnerRoom, owner.Kind)
	assert.Equal(t, "room1", owner.ID)
}
