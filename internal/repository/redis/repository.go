// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/models"
	"github.com/redis/go-redis/v9"
)

// Common errors
var (
	ErrNotFound = errors.New("entity not found")
)

// Repository implements the repository interface with Redis storage
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB and password from config when the URI leaves them unset
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		address := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
		client = redis.NewClient(&redis.Options{
			Addr:     address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.MeetingTTL,
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// Key layout. Rooms are durable (no TTL); meeting history carries the
// configured TTL so ended sessions age out.
func (r *Repository) roomKey(id string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, id)
}

func (r *Repository) roomSlugKey(slug string) string {
	return fmt.Sprintf("%sroom_slug:%s", r.keyPrefix, slug)
}

func (r *Repository) roomMeetingIDKey(meetingID string) string {
	return fmt.Sprintf("%sroom_mid:%s", r.keyPrefix, meetingID)
}

func (r *Repository) meetingKey(id string) string {
	return fmt.Sprintf("%smeeting:%s", r.keyPrefix, id)
}

func (r *Repository) roomMeetingsKey(roomID string) string {
	return fmt.Sprintf("%sroom_meetings:%s", r.keyPrefix, roomID)
}

func (r *Repository) metadataKey(owner models.MetadataOwner) string {
	return fmt.Sprintf("%smeta:%s:%s", r.keyPrefix, owner.Kind, owner.ID)
}

// storedRoom strips transient fields before marshalling.
func storedRoom(room *models.Room) *models.Room {
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

// SaveRoom validates and stores a room, enforcing meeting ID and slug
// uniqueness through index keys claimed with SETNX semantics.
func (r *Repository) SaveRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if err := room.Validate(); err != nil {
		return err
	}

	// Check uniqueness of both identifiers before writing
	if owner, err := r.client.Get(ctx, r.roomMeetingIDKey(room.MeetingID)).Result(); err == nil && owner != room.ID {
		return &models.ValidationError{Field: "meeting_id", Reason: "already in use by another room"}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to check meeting ID index: %w", err)
	}
	if owner, err := r.client.Get(ctx, r.roomSlugKey(room.Slug)).Result(); err == nil && owner != room.ID {
		return &models.ValidationError{Field: "slug", Reason: "already in use by another room"}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to check slug index: %w", err)
	}

	data, err := json.Marshal(storedRoom(room))
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// Load the previous version to clean up renamed index entries
	var old *models.Room
	if prev, err := r.client.Get(ctx, r.roomKey(room.ID)).Bytes(); err == nil {
		old = &models.Room{}
		if err := json.Unmarshal(prev, old); err != nil {
			old = nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to load previous room: %w", err)
	}

	pipe := r.client.Pipeline()
	if old != nil && old.MeetingID != room.MeetingID {
		pipe.Del(ctx, r.roomMeetingIDKey(old.MeetingID))
	}
	if old != nil && old.Slug != room.Slug {
		pipe.Del(ctx, r.roomSlugKey(old.Slug))
	}
	pipe.Set(ctx, r.roomKey(room.ID), data, 0)
	pipe.Set(ctx, r.roomMeetingIDKey(room.MeetingID), room.ID, 0)
	pipe.Set(ctx, r.roomSlugKey(room.Slug), room.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

// GetRoomBySlug retrieves a room through the slug index
func (r *Repository) GetRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	id, err := r.client.Get(ctx, r.roomSlugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve slug: %w", err)
	}
	return r.GetRoom(ctx, id)
}

// ListRooms returns all rooms
func (r *Repository) ListRooms(ctx context.Context) ([]*models.Room, error) {
	pattern := r.roomKey("*")
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(keys) == 0 {
		return []*models.Room{}, nil
	}

	// Use MGET to retrieve all room data in a single roundtrip
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room data: %w", err)
	}

	rooms := make([]*models.Room, 0, len(values))
	for _, v := range values {
		strData, ok := v.(string)
		if !ok {
			continue
		}
		var room models.Room
		if err := json.Unmarshal([]byte(strData), &room); err != nil {
			continue
		}
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

// DeleteRoom removes a room, destroys its metadata and detaches its meetings
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	room, err := r.GetRoom(ctx, id)
	if err != nil {
		return err
	}

	// Detach meeting history before dropping the per-room index
	meetings, err := r.ListMeetingsForRoom(ctx, id)
	if err != nil {
		return err
	}
	for _, meeting := range meetings {
		meeting.RoomID = ""
		if err := r.SaveMeeting(ctx, meeting); err != nil {
			return err
		}
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.roomKey(id))
	pipe.Del(ctx, r.roomSlugKey(room.Slug))
	pipe.Del(ctx, r.roomMeetingIDKey(room.MeetingID))
	pipe.Del(ctx, r.roomMeetingsKey(id))
	pipe.Del(ctx, r.metadataKey(models.RoomOwner(id)))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// MaxDialNumber returns the greatest assigned dial number, or ""
func (r *Repository) MaxDialNumber(ctx context.Context) (string, error) {
	rooms, err := r.ListRooms(ctx)
	if err != nil {
		return "", err
	}
	max := ""
	for _, room := range rooms {
		if room.DialNumber > max {
			max = room.DialNumber
		}
	}
	return max, nil
}

// SaveMeeting stores a meeting record and indexes it under its room, scored
// by creation time so the latest meeting is a single ZREVRANGE away.
func (r *Repository) SaveMeeting(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}

	data, err := json.Marshal(meeting)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.meetingKey(meeting.ID), data, r.ttl)
	if meeting.RoomID != "" {
		key := r.roomMeetingsKey(meeting.RoomID)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(meeting.CreatedAt.UnixNano()),
			Member: meeting.ID,
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}
	return nil
}

// GetMeeting retrieves a meeting by ID
func (r *Repository) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	data, err := r.client.Get(ctx, r.meetingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	var meeting models.Meeting
	if err := json.Unmarshal(data, &meeting); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meeting: %w", err)
	}
	return &meeting, nil
}

// ListMeetingsForRoom returns the room's meetings, oldest first
func (r *Repository) ListMeetingsForRoom(ctx context.Context, roomID string) ([]*models.Meeting, error) {
	ids, err := r.client.ZRange(ctx, r.roomMeetingsKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	meetings := make([]*models.Meeting, 0, len(ids))
	for _, id := range ids {
		meeting, err := r.GetMeeting(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Meeting record expired out from under the index
				continue
			}
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

// LatestMeetingForRoom returns the most recently created meeting, or nil
func (r *Repository) LatestMeetingForRoom(ctx context.Context, roomID string) (*models.Meeting, error) {
	ids, err := r.client.ZRevRange(ctx, r.roomMeetingsKey(roomID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest meeting: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	meeting, err := r.GetMeeting(ctx, ids[0])
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return meeting, err
}

// SetMetadata stores a metadata entry in the owner's hash
func (r *Repository) SetMetadata(ctx context.Context, meta models.Metadata) error {
	if meta.Name == "" {
		return &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	if err := r.client.HSet(ctx, r.metadataKey(meta.Owner), meta.Name, meta.Value).Err(); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

// ListMetadata returns all metadata entries for an owner
func (r *Repository) ListMetadata(ctx context.Context, owner models.MetadataOwner) ([]models.Metadata, error) {
	values, err := r.client.HGetAll(ctx, r.metadataKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	entries := make([]models.Metadata, 0, len(values))
	for name, value := range values {
		entries = append(entries, models.Metadata{Owner: owner, Name: name, Value: value})
	}
	return entries, nil
}

// DeleteMetadata removes one metadata entry
func (r *Repository) DeleteMetadata(ctx context.Context, owner models.MetadataOwner, name string) error {
	removed, err := r.client.HDel(ctx, r.metadataKey(owner), name).Result()
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}
