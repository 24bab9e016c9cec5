// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/openconf/brooms/internal/models"
)

// ErrNotFound is returned when a requested entity is not found
var ErrNotFound = errors.New("entity not found")

// Repository implements the repository interface with in-memory storage
type Repository struct {
	rooms        map[string]*models.Room
	slugIndex    map[string]string // slug -> room ID
	meetingIDIdx map[string]string // room meeting ID -> room ID
	meetings     map[string]*models.Meeting
	roomMeetings map[string][]string          // room ID -> meeting IDs, insertion order
	metadata     map[string]map[string]string // owner key -> name -> value
	mu           sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		rooms:        make(map[string]*models.Room),
		slugIndex:    make(map[string]string),
		meetingIDIdx: make(map[string]string),
		meetings:     make(map[string]*models.Meeting),
		roomMeetings: make(map[string][]string),
		metadata:     make(map[string]map[string]string),
	}
}

func ownerKey(owner models.MetadataOwner) string {
	return string(owner.Kind) + ":" + owner.ID
}

// copyRoom returns a shallow copy so callers cannot mutate stored state.
// Transient fields are intentionally dropped, matching durable persistence.
func copyRoom(room *models.Room) *models.Room {
	c := *room
	c.ParticipantCount = 0
	c.ModeratorCount = 0
	c.CurrentAttendees = nil
	c.HasBeenForciblyEnded = false
	c.EndTime = ""
	c.FullLogoutURL = ""
	c.RequestHeaders = nil
	return &c
}

func copyMeeting(meeting *models.Meeting) *models.Meeting {
	c := *meeting
	return &c
}

// SaveRoom validates and stores a room, enforcing meeting ID and slug
// uniqueness across all rooms.
func (r *Repository) SaveRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if err := room.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.meetingIDIdx[room.MeetingID]; taken && owner != room.ID {
		return &models.ValidationError{Field: "meeting_id", Reason: "already in use by another room"}
	}
	if owner, taken := r.slugIndex[room.Slug]; taken && owner != room.ID {
		return &models.ValidationError{Field: "slug", Reason: "already in use by another room"}
	}

	// Drop stale index entries when the room's identifiers changed
	if old, exists := r.rooms[room.ID]; exists {
		if old.MeetingID != room.MeetingID {
			delete(r.meetingIDIdx, old.MeetingID)
		}
		if old.Slug != room.Slug {
			delete(r.slugIndex, old.Slug)
		}
	}

	r.rooms[room.ID] = copyRoom(room)
	r.meetingIDIdx[room.MeetingID] = room.ID
	r.slugIndex[room.Slug] = room.ID
	return nil
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(room), nil
}

// GetRoomBySlug retrieves a room by its slug
func (r *Repository) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slugIndex[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(r.rooms[id]), nil
}

// ListRooms returns all rooms
func (r *Repository) ListRooms(ctx context.Context) ([]*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, copyRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Slug < rooms[j].Slug })
	return rooms, nil
}

// DeleteRoom removes a room, destroys its metadata and detaches its meetings
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return ErrNotFound
	}

	delete(r.rooms, id)
	delete(r.slugIndex, room.Slug)
	delete(r.meetingIDIdx, room.MeetingID)
	delete(r.metadata, ownerKey(models.RoomOwner(id)))

	// Meeting records survive as detached history
	for _, meetingID := range r.roomMeetings[id] {
		if meeting, ok := r.meetings[meetingID]; ok {
			meeting.RoomID = ""
		}
	}
	delete(r.roomMeetings, id)
	return nil
}

// MaxDialNumber returns the greatest assigned dial number, or ""
func (r *Repository) MaxDialNumber(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := ""
	for _, room := range r.rooms {
		if room.DialNumber > max {
			max = room.DialNumber
		}
	}
	return max, nil
}

// SaveMeeting stores a meeting record
func (r *Repository) SaveMeeting(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.meetings[meeting.ID]; !exists && meeting.RoomID != "" {
		r.roomMeetings[meeting.RoomID] = append(r.roomMeetings[meeting.RoomID], meeting.ID)
	}
	r.meetings[meeting.ID] = copyMeeting(meeting)
	return nil
}

// GetMeeting retrieves a meeting by ID
func (r *Repository) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meeting, ok := r.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMeeting(meeting), nil
}

// ListMeetingsForRoom returns the room's meetings, oldest first
func (r *Repository) ListMeetingsForRoom(ctx context.Context, roomID string) ([]*models.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.roomMeetings[roomID]
	meetings := make([]*models.Meeting, 0, len(ids))
	for _, id := range ids {
		if meeting, ok := r.meetings[id]; ok {
			meetings = append(meetings, copyMeeting(meeting))
		}
	}
	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].CreatedAt.Before(meetings[j].CreatedAt)
	})
	return meetings, nil
}

// LatestMeetingForRoom returns the most recently created meeting, or nil
func (r *Repository) LatestMeetingForRoom(ctx context.Context, roomID string) (*models.Meeting, error) {
	meetings, err := r.ListMeetingsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(meetings) == 0 {
		return nil, nil
	}
	return meetings[len(meetings)-1], nil
}

// SetMetadata stores a metadata entry for its owner
func (r *Repository) SetMetadata(ctx context.Context, meta models.Metadata) error {
	if meta.Name == "" {
		return &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerKey(meta.Owner)
	if r.metadata[key] == nil {
		r.metadata[key] = make(map[string]string)
	}
	r.metadata[key][meta.Name] = meta.Value
	return nil
}

// ListMetadata returns all metadata entries for an owner
func (r *Repository) ListMetadata(ctx context.Context, owner models.MetadataOwner) ([]models.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]models.Metadata, 0)
	for name, value := range r.metadata[ownerKey(owner)] {
		entries = append(entries, models.Metadata{Owner: owner, Name: name, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// DeleteMetadata removes one metadata entry
func (r *Repository) DeleteMetadata(ctx context.Context, owner models.MetadataOwner, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.metadata[ownerKey(owner)]
	if !ok {
		return ErrNotFound
	}
	if _, ok := entries[name]; !ok {
		return ErrNotFound
	}
	delete(entries, name)
	return nil
}
