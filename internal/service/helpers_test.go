package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/models"
)

// fakeAPI is a programmable conference server double recording every call.
type fakeAPI struct {
	mu sync.Mutex

	running    bool
	runningErr error

	info    *bbb.MeetingInfo
	infoErr error

	createResp *bbb.CreateResponse
	createErr  error
	createOpts []bbb.CreateOptions

	endErr   error
	endCalls []string

	joinURL  string
	joinOpts []bbb.JoinOptions
}

func (f *fakeAPI) CreateMeeting(ctx context.Context, name, meetingID string, opts bbb.CreateOptions) (*bbb.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createOpts = append(f.createOpts, opts)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &bbb.CreateResponse{MeetingID: meetingID}, nil
}

func (f *fakeAPI) GetMeetingInfo(ctx context.Context, meetingID, password string) (*bbb.MeetingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeAPI) IsMeetingRunning(ctx context.Context, meetingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, f.runningErr
}

func (f *fakeAPI) EndMeeting(ctx context.Context, meetingID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls = append(f.endCalls, meetingID)
	return f.endErr
}

func (f *fakeAPI) JoinMeetingURL(meetingID, fullName, password string, opts bbb.JoinOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinOpts = append(f.joinOpts, opts)
	if f.joinURL != "" {
		return f.joinURL, nil
	}
	return "https://conf.example.com/join?meetingID=" + meetingID + "&fullName=" + fullName + "&password=" + password, nil
}

// queuedTask is one recorded enqueue call.
type queuedTask struct {
	Delay  time.Duration
	Type   string
	RoomID string
	Args   []string
}

// fakeQueue records enqueued tasks without executing them.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *fakeQueue) Enqueue(ctx context.Context, taskType, roomID string, args ...string) error {
	return q.EnqueueDelayed(ctx, 0, taskType, roomID, args...)
}

func (q *fakeQueue) EnqueueDelayed(ctx context.Context, delay time.Duration, taskType, roomID string, args ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{Delay: delay, Type: taskType, RoomID: roomID, Args: args})
	return nil
}

func (q *fakeQueue) recorded() []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedTask(nil), q.tasks...)
}

// testRoom returns a valid private room ready to persist.
func testRoom() *models.Room {
	return &models.Room{
		ID:           "room1",
		MeetingID:    "meeting-abc",
		Name:         "Weekly Sync",
		Slug:         "weekly-sync",
		Private:      true,
		ModeratorKey: "modkey",
		AttendeeKey:  "attkey",
		ModeratorPW:  "modpw",
		AttendeePW:   "attpw",
	}
}
