package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/utils"
)

// MeetingUpdateCallback is a function type for meeting update callbacks
type MeetingUpdateCallback func(*models.Meeting)

// MeetingSnapshot is the transient per-fetch view of a room's live meeting.
type MeetingSnapshot struct {
	Running              bool
	CreateTime           int64
	ParticipantCount     int
	ModeratorCount       int
	HasBeenForciblyEnded bool
	EndTime              string
	Attendees            []models.Attendee
}

// Reconciler fetches remote meeting truth and corrects local state to match.
// All its operations are idempotent: re-fetching an already-ended meeting is
// a safe no-op beyond re-confirming the ended state.
type Reconciler struct {
	repo            repository.Repository
	selector        bbb.ServerSelector
	recordings      *RecordingScheduler
	cfg             config.Config
	updateCallbacks []MeetingUpdateCallback
}

// NewReconciler creates a Reconciler over the given store and server selector.
func NewReconciler(repo repository.Repository, selector bbb.ServerSelector, recordings *RecordingScheduler, cfg config.Config) *Reconciler {
	return &Reconciler{
		repo:       repo,
		selector:   selector,
		recordings: recordings,
		cfg:        cfg,
	}
}

// RegisterUpdateCallback registers a callback function to be called when meeting data changes
func (r *Reconciler) RegisterUpdateCallback(callback MeetingUpdateCallback) {
	r.updateCallbacks = append(r.updateCallbacks, callback)
}

// notifyUpdate calls all registered callbacks with the updated meeting
func (r *Reconciler) notifyUpdate(meeting *models.Meeting) {
	for _, callback := range r.updateCallbacks {
		callback(meeting)
	}
}

// FetchMeetingInfo asks the remote server for the room's live meeting state.
//
// On success it fills the room's transient fields, returns the snapshot, and
// updates the room's current meeting record (running, create time, creator
// metadata), explicitly clearing the ended flag: the remote server answering
// for this meeting ID is authoritative proof the meeting exists, even if a
// record was mistakenly marked ended.
//
// A "meeting not found" answer is equally authoritative in the other
// direction: every not-yet-ended meeting record of the room is finalized,
// recording sync is scheduled, and an empty snapshot is returned with a nil
// error. Only transport and server failures surface as errors.
func (r *Reconciler) FetchMeetingInfo(ctx context.Context, room *models.Room) (*MeetingSnapshot, error) {
	server, err := r.selector.ServerFor(ctx, room, bbb.OpInfo)
	if err != nil {
		return nil, err
	}

	ctx = bbb.WithRequestHeaders(ctx, room.RequestHeaders)
	info, err := server.GetMeetingInfo(ctx, room.MeetingID, room.ModeratorPW)
	if err != nil {
		if errors.Is(err, bbb.ErrMeetingNotFound) {
			ended := r.finalizeEndedMeetings(ctx, room)
			r.recordings.ScheduleAfterMeetingsEnded(ctx, room.ID, ended)
			return &MeetingSnapshot{}, nil
		}
		return nil, err
	}

	snapshot := &MeetingSnapshot{
		Running:              info.Running,
		CreateTime:           info.CreateTime,
		ParticipantCount:     info.ParticipantCount,
		ModeratorCount:       info.ModeratorCount,
		HasBeenForciblyEnded: info.HasBeenForciblyEnded,
		EndTime:              info.EndTime,
		Attendees:            info.Attendees,
	}

	// Transient room state, valid until the next fetch
	room.ParticipantCount = info.ParticipantCount
	room.ModeratorCount = info.ModeratorCount
	room.HasBeenForciblyEnded = info.HasBeenForciblyEnded
	room.EndTime = info.EndTime
	room.CurrentAttendees = info.Attendees

	r.updateCurrentMeeting(ctx, room, info)
	return snapshot, nil
}

// updateCurrentMeeting applies the fetched remote state to the room's latest
// meeting record, creating one if the server knows a meeting we have no
// record of (e.g. created by another deployment sharing the backend).
func (r *Reconciler) updateCurrentMeeting(ctx context.Context, room *models.Room, info *bbb.MeetingInfo) {
	meeting, err := r.repo.LatestMeetingForRoom(ctx, room.ID)
	if err != nil {
		log.Printf("Error loading latest meeting for room %s: %v", utils.SanitizeLogString(room.ID), err)
		return
	}
	if meeting == nil {
		meeting = &models.Meeting{
			ID:        uuid.NewString(),
			RoomID:    room.ID,
			CreatedAt: time.Now(),
		}
	}

	meeting.Running = info.Running
	meeting.Ended = false
	meeting.FinishTime = time.Time{}
	if info.CreateTime > 0 {
		meeting.CreateTime = info.CreateTime
	}
	r.applyCreatorMetadata(meeting, info.Metadata)

	if err := r.repo.SaveMeeting(ctx, meeting); err != nil {
		log.Printf("Error saving reconciled meeting state: %v", err)
		return
	}
	r.notifyUpdate(meeting)
}

// applyCreatorMetadata extracts the creator identity from remote metadata.
// A malformed creator ID leaves both fields unset rather than aborting the
// reconciliation.
func (r *Reconciler) applyCreatorMetadata(meeting *models.Meeting, metadata map[string]string) {
	id := metadata[r.cfg.UserIDMetadataKey]
	if id == "" {
		return
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		log.Printf("Ignoring malformed creator id in meeting metadata: %s", utils.SanitizeLogString(id))
		return
	}
	meeting.CreatorID = id
	meeting.CreatorName = metadata[r.cfg.UserNameMetadataKey]
}

// finalizeEndedMeetings transitions every not-yet-ended meeting of the room
// to its terminal state and returns how many were finalized. Errors are
// logged, never raised: this runs inside the not-found recovery path.
func (r *Reconciler) finalizeEndedMeetings(ctx context.Context, room *models.Room) int {
	meetings, err := r.repo.ListMeetingsForRoom(ctx, room.ID)
	if err != nil {
		log.Printf("Error listing meetings for room %s: %v", utils.SanitizeLogString(room.ID), err)
		return 0
	}

	now := time.Now()
	ended := 0
	for _, meeting := range meetings {
		if meeting.Ended {
			continue
		}
		meeting.MarkEnded(now)
		if err := r.repo.SaveMeeting(ctx, meeting); err != nil {
			log.Printf("Error saving ended meeting state: %v", err)
			continue
		}
		ended++
		r.notifyUpdate(meeting)
	}
	return ended
}

// IsRunning is a lightweight remote liveness check. No local state changes.
func (r *Reconciler) IsRunning(ctx context.Context, room *models.Room) (bool, error) {
	server, err := r.selector.ServerFor(ctx, room, bbb.OpRunning)
	if err != nil {
		return false, err
	}
	return server.IsMeetingRunning(bbb.WithRequestHeaders(ctx, room.RequestHeaders), room.MeetingID)
}

// CurrentMeeting returns the room's most recently created meeting unless it
// is marked ended, in which case there is no current meeting. This is the
// sole definition of "current"; callers must not infer currency from the
// running flag.
func (r *Reconciler) CurrentMeeting(ctx context.Context, room *models.Room) (*models.Meeting, error) {
	meeting, err := r.repo.LatestMeetingForRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if meeting == nil || meeting.Ended {
		return nil, nil
	}
	return meeting, nil
}
