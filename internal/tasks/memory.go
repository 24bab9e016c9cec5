package tasks

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue runs tasks in-process on timers. Suitable for development and
// single-instance deployments; tasks do not survive a restart.
type MemoryQueue struct {
	handler Handler
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewMemoryQueue creates an in-process queue. Tasks enqueued before a
// handler is set are dropped with a log line.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// SetHandler installs the task handler, normally a Mux's Dispatch.
func (q *MemoryQueue) SetHandler(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

// Enqueue runs the task immediately on its own goroutine.
func (q *MemoryQueue) Enqueue(ctx context.Context, taskType, roomID string, args ...string) error {
	return q.EnqueueDelayed(ctx, 0, taskType, roomID, args...)
}

// EnqueueDelayed schedules the task after the given delay.
func (q *MemoryQueue) EnqueueDelayed(ctx context.Context, delay time.Duration, taskType, roomID string, args ...string) error {
	task := Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		RoomID: roomID,
		Args:   args,
	}

	q.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer q.wg.Done()

		q.mu.RLock()
		handler := q.handler
		q.mu.RUnlock()

		if handler == nil {
			log.Printf("Dropping task %s (%s): no handler installed", task.ID, task.Type)
			return
		}
		if err := handler(context.Background(), task); err != nil {
			log.Printf("Task %s (%s) for room %s failed: %v", task.ID, task.Type, task.RoomID, err)
		}
	})
	return nil
}

// Wait blocks until all scheduled tasks have run. Test helper.
func (q *MemoryQueue) Wait() {
	q.wg.Wait()
}
