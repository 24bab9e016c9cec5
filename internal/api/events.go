package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/openconf/brooms/internal/models"
	"github.com/r3labs/sse/v2"
)

// meetingsStream is the SSE stream carrying meeting lifecycle updates.
const meetingsStream = "meetings"

// EventsHandler pushes meeting lifecycle updates to subscribers over
// server-sent events. It is registered as an update callback with the
// lifecycle components.
type EventsHandler struct {
	server *sse.Server
}

// NewEventsHandler creates the SSE server and its meetings stream.
func NewEventsHandler() *EventsHandler {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(meetingsStream)
	return &EventsHandler{server: server}
}

// NotifyMeetingUpdate publishes a meeting state change to all subscribers.
// Matches the MeetingUpdateCallback signature.
func (h *EventsHandler) NotifyMeetingUpdate(meeting *models.Meeting) {
	data, err := json.Marshal(meeting)
	if err != nil {
		log.Printf("Error encoding meeting update event: %v", err)
		return
	}
	h.server.Publish(meetingsStream, &sse.Event{
		Event: []byte("meeting_update"),
		Data:  data,
	})
}

// ServeHTTP subscribes the client to the meetings stream.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The stream name is fixed server-side
	query := r.URL.Query()
	query.Set("stream", meetingsStream)
	r.URL.RawQuery = query.Encode()
	h.server.ServeHTTP(w, r)
}

// Shutdown closes all subscriber connections.
func (h *EventsHandler) Shutdown() {
	h.server.Close()
}
