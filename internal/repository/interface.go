// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/openconf/brooms/internal/models"
)

// Repository defines the interface for storing and retrieving room, meeting
// and metadata records. Save operations validate before writing; uniqueness
// of a room's meeting ID and slug is enforced here, not by callers.
type Repository interface {
	// Room operations
	SaveRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]*models.Room, error)
	// DeleteRoom destroys the room and its metadata; meeting records are
	// detached (room reference cleared), not deleted.
	DeleteRoom(ctx context.Context, id string) error
	// MaxDialNumber returns the greatest dial number assigned to any room,
	// or the empty string when none is assigned.
	MaxDialNumber(ctx context.Context) (string, error)

	// Meeting operations
	SaveMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)
	// ListMeetingsForRoom returns the room's meetings ordered oldest first.
	ListMeetingsForRoom(ctx context.Context, roomID string) ([]*models.Meeting, error)
	// LatestMeetingForRoom returns the most recently created meeting, or
	// nil when the room has none.
	LatestMeetingForRoom(ctx context.Context, roomID string) (*models.Meeting, error)

	// Metadata operations
	SetMetadata(ctx context.Context, meta models.Metadata) error
	ListMetadata(ctx context.Context, owner models.MetadataOwner) ([]models.Metadata, error)
	DeleteMetadata(ctx context.Context, owner models.MetadataOwner, name string) error
}
