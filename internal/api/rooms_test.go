package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openconf/brooms/internal/api"
	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/repository/memory"
	"github.com/openconf/brooms/internal/service"
	"github.com/openconf/brooms/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a programmable conferencing server double.
type fakeAPI struct {
	mu         sync.Mutex
	running    bool
	info       *bbb.MeetingInfo
	infoErr    error
	ends       int
	endHeaders map[string]string
	joinPWs    []string
}

func (f *fakeAPI) CreateMeeting(ctx context.Context, name, meetingID string, opts bbb.CreateOptions) (*bbb.CreateResponse, error) {
	return &bbb.CreateResponse{MeetingID: meetingID, ModeratorPW: "mpw", AttendeePW: "apw"}, nil
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
	return f.running, nil
}

func (f *fakeAPI) EndMeeting(ctx context.Context, meetingID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	f.endHeaders = bbb.RequestHeadersFromContext(ctx)
	return nil
}

func (f *fakeAPI) JoinMeetingURL(meetingID, fullName, password string, opts bbb.JoinOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinPWs = append(f.joinPWs, password)
	return "https://conf.example.com/join?meetingID=" + meetingID, nil
}

type testEnv struct {
	mux  *http.ServeMux
	repo *memory.Repository
	api  *fakeAPI
}

func setupAPI(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	repo := memory.NewRepository()
	fake := &fakeAPI{}
	selector := &bbb.StaticSelector{Server: fake}
	queue := tasks.NewMemoryQueue()

	recordings := service.NewRecordingScheduler(queue, cfg.RecordingSyncIntervals, nil)
	reconciler := service.NewReconciler(repo, selector, recordings, cfg)
	coordinator := service.NewCoordinator(repo, selector, reconciler, queue, cfg)
	dialNumbers := service.NewDialNumbers(repo)
	events := api.NewEventsHandler()
	t.Cleanup(events.Shutdown)

	return &testEnv{
		mux:  api.SetupRoutes(repo, coordinator, reconciler, dialNumbers, events, cfg),
		repo: repo,
		api:  fake,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func seedRoom(t *testing.T, env *testEnv) *models.Room {
	t.Helper()
	room := &models.Room{
		ID:           "room1",
		MeetingID:    "meeting-abc",
		Name:         "Weekly Sync",
		Slug:         "weekly-sync",
		ModeratorKey: "modkey",
		AttendeeKey:  "attkey",
		ModeratorPW:  "modpw",
		AttendeePW:   "attpw",
	}
	require.NoError(t, env.repo.SaveRoom(context.Background(), room))
	return room
}

func TestHealthEndpoints(t *testing.T) {
	env := setupAPI(t, config.Config{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"UP"`)
	}
}

func TestCreateRoom(t *testing.T) {
	env := setupAPI(t, config.Config{})

	rec := env.do(t, http.MethodPost, "/api/rooms", map[string]interface{}{"name": "Daily Standup"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.MeetingID, "a meeting ID is generated when absent")
	assert.Equal(t, "daily-standup", created.Slug)
}

func TestCreateRoomValidation(t *testing.T) {
	env := setupAPI(t, config.Config{})

	rec := env.do(t, http.MethodPost, "/api/rooms", map[string]interface{}{"name": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/rooms", map[string]interface{}{"private": true, "name": "Locked"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "private rooms need both keys")

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader("{not json"))
	resp := httptest.NewRecorder()
	env.mux.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateRoomAssignsDialNumber(t *testing.T) {
	env := setupAPI(t, config.Config{DialNumberPattern: "10xx"})

	rec := env.do(t, http.MethodPost, "/api/rooms", map[string]interface{}{
		"name":               "Daily Standup",
		"assign_dial_number": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "1000", created.DialNumber)
}

func TestListRooms(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "weekly-sync", rooms[0].Slug)
}

func TestGetRoom(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodGet, "/api/rooms/weekly-sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var room models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	assert.Equal(t, "room1", room.ID)

	rec = env.do(t, http.MethodGet, "/api/rooms/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRoomLive(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)
	env.api.info = &bbb.MeetingInfo{Running: true, CreateTime: time.Now().UnixMilli(), ParticipantCount: 4}

	rec := env.do(t, http.MethodGet, "/api/rooms/weekly-sync?live=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Running          bool `json:"running"`
		ParticipantCount int  `json:"participant_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, 4, status.ParticipantCount)
}

func TestGetRoomLiveWithoutServer(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)
	// Simulate an unconfigured deployment
	env.mux = setupWithoutServer(t, env)

	rec := env.do(t, http.MethodGet, "/api/rooms/weekly-sync?live=true", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// setupWithoutServer rebuilds the routes around an empty server selector.
func setupWithoutServer(t *testing.T, env *testEnv) *http.ServeMux {
	t.Helper()

	cfg := config.Config{}
	selector := &bbb.StaticSelector{}
	queue := tasks.NewMemoryQueue()
	recordings := service.NewRecordingScheduler(queue, nil, nil)
	reconciler := service.NewReconciler(env.repo, selector, recordings, cfg)
	coordinator := service.NewCoordinator(env.repo, selector, reconciler, queue, cfg)
	events := api.NewEventsHandler()
	t.Cleanup(events.Shutdown)

	return api.SetupRoutes(env.repo, coordinator, reconciler, service.NewDialNumbers(env.repo), events, cfg)
}

func TestDeleteRoom(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodDelete, "/api/rooms/weekly-sync", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/rooms/weekly-sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartMeeting(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodPost, "/api/rooms/weekly-sync/meetings", map[string]interface{}{
		"user": map[string]string{"id": "42", "name": "Ana"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"started":true`)

	// With the meeting now reported running, a second start is a no-op
	env.api.mu.Lock()
	env.api.running = true
	env.api.mu.Unlock()

	rec = env.do(t, http.MethodPost, "/api/rooms/weekly-sync/meetings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"started":false`)
}

func TestEndMeeting(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodDelete, "/api/rooms/weekly-sync/meetings", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	assert.Equal(t, 1, env.api.ends)
}

func TestEndMeetingForwardsClientAddress(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	// httptest requests carry RemoteAddr 192.0.2.1:1234; only the host
	// may end up in X-Forwarded-For
	rec := env.do(t, http.MethodDelete, "/api/rooms/weekly-sync/meetings", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	assert.Equal(t, "192.0.2.1", env.api.endHeaders["X-Forwarded-For"])
}

func TestListMeetings(t *testing.T) {
	env := setupAPI(t, config.Config{})
	room := seedRoom(t, env)
	require.NoError(t, env.repo.SaveMeeting(context.Background(), &models.Meeting{
		ID: "m1", RoomID: room.ID, CreatedAt: time.Now(),
	}))

	rec := env.do(t, http.MethodGet, "/api/rooms/weekly-sync/meetings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var meetings []models.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meetings))
	require.Len(t, meetings, 1)
	assert.Equal(t, "m1", meetings[0].ID)
}

func TestJoinMeetingWithKey(t *testing.T) {
	env := setupAPI(t, config.Config{})
	room := seedRoom(t, env)
	room.Private = true
	require.NoError(t, env.repo.SaveRoom(context.Background(), room))

	rec := env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Ana",
		"key":  "modkey",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "join_url")

	rec = env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Eve",
		"key":  "wrong",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJoinPublicRoomWithoutKey(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Ana",
	})
	assert.Equal(t, http.StatusOK, rec.Code, "public rooms admit keyless joins as attendees")
}

func TestJoinPrivateRoomIgnoresExplicitRole(t *testing.T) {
	env := setupAPI(t, config.Config{})
	room := seedRoom(t, env)
	room.Private = true
	require.NoError(t, env.repo.SaveRoom(context.Background(), room))

	// Claiming a role without a key gets nobody into a private room
	rec := env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Eve",
		"role": "moderator",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An attendee key caps the role at attendee no matter what was asked for
	rec = env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Eve",
		"key":  "attkey",
		"role": "moderator",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	require.NotEmpty(t, env.api.joinPWs)
	assert.Equal(t, "attpw", env.api.joinPWs[len(env.api.joinPWs)-1])
}

func TestJoinWithExplicitRole(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodPost, "/api/rooms/weekly-sync/join", map[string]interface{}{
		"name": "Ana",
		"role": "moderator",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetadataEndpoints(t *testing.T) {
	env := setupAPI(t, config.Config{})
	room := seedRoom(t, env)

	rec := env.do(t, http.MethodPut, "/api/rooms/weekly-sync/metadata/team", map[string]string{"value": "platform"})
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := env.repo.ListMetadata(context.Background(), models.RoomOwner(room.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "platform", entries[0].Value)

	rec = env.do(t, http.MethodDelete, "/api/rooms/weekly-sync/metadata/team", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/rooms/weekly-sync/metadata/team", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoutes(t *testing.T) {
	env := setupAPI(t, config.Config{})
	seedRoom(t, env)

	rec := env.do(t, http.MethodPatch, "/api/rooms/weekly-sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/rooms/weekly-sync/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
