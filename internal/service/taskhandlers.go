package service

import (
	"context"
	"log"
	"strconv"

	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/tasks"
	"github.com/openconf/brooms/internal/utils"
)

// RegisterTaskHandlers binds the background task types to the lifecycle
// components. Handlers are idempotent and tolerate duplicate or out-of-order
// delivery; a task for a room that no longer exists is dropped.
func RegisterTaskHandlers(mux *tasks.Mux, repo repository.Repository, reconciler *Reconciler, scheduler *RecordingScheduler) {
	mux.Handle(tasks.TypeReconcileMeeting, func(ctx context.Context, task tasks.Task) error {
		room, err := repo.GetRoom(ctx, task.RoomID)
		if err != nil {
			log.Printf("Dropping reconcile task for room %s: %v", utils.SanitizeLogString(task.RoomID), err)
			return nil
		}
		_, err = reconciler.FetchMeetingInfo(ctx, room)
		return err
	})

	mux.Handle(tasks.TypeSyncRecordings, func(ctx context.Context, task tasks.Task) error {
		remaining := 0
		if len(task.Args) > 0 {
			remaining, _ = strconv.Atoi(task.Args[0])
		}

		room, err := repo.GetRoom(ctx, task.RoomID)
		if err != nil {
			log.Printf("Dropping recording sync task for room %s: %v", utils.SanitizeLogString(task.RoomID), err)
			return nil
		}

		if scheduler.syncer != nil {
			if err := scheduler.syncer.SyncRecordings(ctx, room); err != nil {
				log.Printf("Recording sync for room %s failed: %v", utils.SanitizeLogString(task.RoomID), err)
			}
		}

		// Recordings may publish late; run the sequence to exhaustion
		scheduler.ScheduleNext(ctx, task.RoomID, remaining)
		return nil
	})
}
