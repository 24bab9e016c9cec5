// Package tasks provides fire-and-forget background task dispatch with
// at-least-once semantics. Lifecycle components enqueue follow-up work
// (reconciliation, recording sync) and never wait for it.
package tasks

import (
	"context"
	"fmt"
	"time"
)

// Task types dispatched by the lifecycle components.
const (
	TypeReconcileMeeting = "reconcile_meeting"
	TypeSyncRecordings   = "sync_recordings"
)

// Task is one unit of queued work. Args carry task-specific extras, e.g. the
// remaining retry count for recording sync.
type Task struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	RoomID string   `json:"room_id"`
	Args   []string `json:"args,omitempty"`
}

// Queue enqueues tasks for asynchronous execution. Delivery is at least
// once; handlers must tolerate duplicate and out-of-order execution.
type Queue interface {
	Enqueue(ctx context.Context, taskType, roomID string, args ...string) error
	EnqueueDelayed(ctx context.Context, delay time.Duration, taskType, roomID string, args ...string) error
}

// Handler executes one task.
type Handler func(ctx context.Context, task Task) error

// Mux routes tasks to handlers by task type.
type Mux struct {
	handlers map[string]Handler
}

// NewMux creates an empty task mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers the handler for a task type.
func (m *Mux) Handle(taskType string, h Handler) {
	m.handlers[taskType] = h
}

// Dispatch routes a task to its handler.
func (m *Mux) Dispatch(ctx context.Context, task Task) error {
	h, ok := m.handlers[task.Type]
	if !ok {
		return fmt.Errorf("no handler for task type %q", task.Type)
	}
	return h(ctx, task)
}
