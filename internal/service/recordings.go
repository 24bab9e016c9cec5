package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/tasks"
	"github.com/openconf/brooms/internal/utils"
)

// RecordingSyncer pulls published recordings for a room from the remote
// server. The scheduler only owns the trigger and retry cadence; what a sync
// does is up to the implementation.
type RecordingSyncer interface {
	SyncRecordings(ctx context.Context, room *models.Room) error
}

// RecordingScheduler schedules recording synchronization after meetings end.
// Recordings are published by the remote server some time after a meeting
// finishes, so a single immediate pull is not enough; the configured
// interval sequence spaces out the retries.
type RecordingScheduler struct {
	queue     tasks.Queue
	intervals []time.Duration
	syncer    RecordingSyncer
}

// NewRecordingScheduler creates a scheduler with the configured retry
// interval sequence. An empty sequence or a nil syncer disables recording
// sync; no tasks are enqueued then.
func NewRecordingScheduler(queue tasks.Queue, intervals []time.Duration, syncer RecordingSyncer) *RecordingScheduler {
	return &RecordingScheduler{
		queue:     queue,
		intervals: intervals,
		syncer:    syncer,
	}
}

// ScheduleAfterMeetingsEnded enqueues the first sync when at least one
// meeting was just finalized as ended.
func (s *RecordingScheduler) ScheduleAfterMeetingsEnded(ctx context.Context, roomID string, endedCount int) {
	if s.syncer == nil || endedCount < 1 || len(s.intervals) == 0 {
		return
	}
	s.enqueue(ctx, roomID, s.intervals[0], len(s.intervals)-1)
}

// ScheduleNext enqueues the following retry while retries remain. Called by
// the sync task handler after each attempt; recordings may appear late, so
// the sequence runs to exhaustion regardless of individual outcomes.
func (s *RecordingScheduler) ScheduleNext(ctx context.Context, roomID string, remaining int) {
	if s.syncer == nil || remaining < 1 || remaining > len(s.intervals)-1 {
		return
	}
	s.enqueue(ctx, roomID, s.intervals[len(s.intervals)-remaining], remaining-1)
}

func (s *RecordingScheduler) enqueue(ctx context.Context, roomID string, delay time.Duration, remaining int) {
	err := s.queue.EnqueueDelayed(ctx, delay, tasks.TypeSyncRecordings, roomID, strconv.Itoa(remaining))
	if err != nil {
		log.Printf("Error scheduling recording sync for room %s: %v", utils.SanitizeLogString(roomID), err)
	}
}
