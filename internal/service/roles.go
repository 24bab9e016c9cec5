package service

import (
	"github.com/openconf/brooms/internal/models"
)

// ResolveRole maps a presented key to the role it grants. The comparison is
// exact string equality; an empty presented key never matches. When the
// moderator and attendee keys are equal, the moderator match wins.
func ResolveRole(presentedKey, moderatorKey, attendeeKey string, guestMode bool) models.Role {
	if presentedKey == "" {
		return models.RoleNone
	}
	if presentedKey == moderatorKey {
		return models.RoleModerator
	}
	if presentedKey == attendeeKey {
		if guestMode {
			return models.RoleGuest
		}
		return models.RoleAttendee
	}
	return models.RoleNone
}

// PasswordForKey maps a role key back to the corresponding API password,
// used when joining with only a key and no explicit role. The second return
// is false when the key matches neither role key.
func PasswordForKey(key, attendeeKey, attendeePW, moderatorKey, moderatorPW string) (string, bool) {
	if key == "" {
		return "", false
	}
	switch key {
	case moderatorKey:
		return moderatorPW, true
	case attendeeKey:
		return attendeePW, true
	}
	return "", false
}
