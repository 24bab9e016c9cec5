package service_test

import (
	"testing"

	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name         string
		presentedKey string
		moderatorKey string
		attendeeKey  string
		guestMode    bool
		want         models.Role
	}{
		{"moderator key", "mod", "mod", "att", false, models.RoleModerator},
		{"attendee key", "att", "mod", "att", false, models.RoleAttendee},
		{"attendee key with guest mode", "att", "mod", "att", true, models.RoleGuest},
		{"unknown key", "other", "mod", "att", false, models.RoleNone},
		{"empty presented key", "", "mod", "att", false, models.RoleNone},
		{"empty presented key with empty keys", "", "", "", false, models.RoleNone},
		{"moderator wins when keys are equal", "same", "same", "same", true, models.RoleModerator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.ResolveRole(tt.presentedKey, tt.moderatorKey, tt.attendeeKey, tt.guestMode)
			assert.Equal(t, tt.want, got)

			// Pure function: identical inputs always yield identical roles
			assert.Equal(t, got, service.ResolveRole(tt.presentedKey, tt.moderatorKey, tt.attendeeKey, tt.guestMode))
		})
	}
}

func TestPasswordForKey(t *testing.T) {
	pw, ok := service.PasswordForKey("mod", "att", "attpw", "mod", "modpw")
	assert.True(t, ok)
	assert.Equal(t, "modpw", pw)

	pw, ok = service.PasswordForKey("att", "att", "attpw", "mod", "modpw")
	assert.True(t, ok)
	assert.Equal(t, "attpw", pw)

	_, ok = service.PasswordForKey("nope", "att", "attpw", "mod", "modpw")
	assert.False(t, ok)

	// An empty key never matches, even when a role key is empty too
	_, ok = service.PasswordForKey("", "", "attpw", "mod", "modpw")
	assert.False(t, ok)

	// Moderator mapping wins when both keys are equal
	pw, ok = service.PasswordForKey("same", "same", "attpw", "same", "modpw")
	assert.True(t, ok)
	assert.Equal(t, "modpw", pw)
}
