package models

// Role classifies how a presented key maps to meeting access.
type Role int

const (
	RoleNone Role = iota
	RoleAttendee
	RoleModerator
	RoleGuest
)

// String returns the string representation of a role.
func (r Role) String() string {
	switch r {
	case RoleAttendee:
		return "attendee"
	case RoleModerator:
		return "moderator"
	case RoleGuest:
		return "guest"
	default:
		return "none"
	}
}
