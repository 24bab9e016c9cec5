package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/service"
	"github.com/openconf/brooms/internal/utils"
)

// RoomHandler handles HTTP requests for room management and the room
// lifecycle operations (start, join, end).
type RoomHandler struct {
	repo        repository.Repository
	coordinator *service.Coordinator
	reconciler  *service.Reconciler
	dialNumbers *service.DialNumbers
	cfg         config.Config
}

// NewRoomHandler creates a new room handler with the given collaborators.
func NewRoomHandler(repo repository.Repository, coordinator *service.Coordinator, reconciler *service.Reconciler, dialNumbers *service.DialNumbers, cfg config.Config) *RoomHandler {
	return &RoomHandler{
		repo:        repo,
		coordinator: coordinator,
		reconciler:  reconciler,
		dialNumbers: dialNumbers,
		cfg:         cfg,
	}
}

// ServeHTTP routes room requests.
// Path format: /api/rooms[/{slug}[/meetings|/join|/metadata/{name}]]
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// pathParts: ["api", "rooms", {slug}?, {action}?, {arg}?]

	var slug, action, arg string
	if len(pathParts) >= 3 {
		slug = pathParts[2]
	}
	if len(pathParts) >= 4 {
		action = pathParts[3]
	}
	if len(pathParts) >= 5 {
		arg = pathParts[4]
	}

	switch {
	case r.Method == http.MethodGet && slug == "":
		h.listRooms(w, r)
	case r.Method == http.MethodPost && slug == "":
		h.createRoom(w, r)
	case r.Method == http.MethodGet && slug != "" && action == "":
		h.getRoom(w, r, slug)
	case r.Method == http.MethodDelete && slug != "" && action == "":
		h.deleteRoom(w, r, slug)
	case r.Method == http.MethodGet && action == "meetings":
		h.listMeetings(w, r, slug)
	case r.Method == http.MethodPost && action == "meetings":
		h.startMeeting(w, r, slug)
	case r.Method == http.MethodDelete && action == "meetings":
		h.endMeeting(w, r, slug)
	case r.Method == http.MethodPost && action == "join":
		h.joinMeeting(w, r, slug)
	case r.Method == http.MethodPut && action == "metadata" && arg != "":
		h.setMetadata(w, r, slug, arg)
	case r.Method == http.MethodDelete && action == "metadata" && arg != "":
		h.deleteMetadata(w, r, slug, arg)
	default:
		http.NotFound(w, r)
	}
}

// errorResponse is the JSON shape of error answers
type errorResponse struct {
	Error string `json:"error"`
}

func (h *RoomHandler) loadRoom(w http.ResponseWriter, r *http.Request, slug string) *models.Room {
	room, err := h.repo.GetRoomBySlug(r.Context(), slug)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "room not found"})
		return nil
	}
	return room
}

// createRoomRequest is the body of POST /api/rooms
type createRoomRequest struct {
	models.Room
	AssignDialNumber bool `json:"assign_dial_number,omitempty"`
}

// createRoom handles POST /api/rooms
func (h *RoomHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	room := req.Room
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.MeetingID == "" {
		room.MeetingID = service.GenerateMeetingID()
	}

	if err := h.repo.SaveRoom(r.Context(), &room); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error()})
			return
		}
		log.Printf("Error saving room: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save room"})
		return
	}

	if req.AssignDialNumber && h.cfg.DialNumberPattern != "" {
		if !h.dialNumbers.Assign(r.Context(), &room, h.cfg.DialNumberPattern) {
			log.Printf("Could not assign dial number to room %s", utils.SanitizeLogString(room.Slug))
		}
	}

	writeJSON(w, http.StatusCreated, room)
}

// listRooms handles GET /api/rooms
func (h *RoomHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.repo.ListRooms(r.Context())
	if err != nil {
		log.Printf("Error listing rooms: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list rooms"})
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// roomStatusResponse is a room plus its live state from the remote server
type roomStatusResponse struct {
	Room             *models.Room      `json:"room"`
	Running          bool              `json:"running"`
	ParticipantCount int               `json:"participant_count"`
	ModeratorCount   int               `json:"moderator_count"`
	Attendees        []models.Attendee `json:"attendees,omitempty"`
}

// getRoom handles GET /api/rooms/{slug}; ?live=true adds the remote snapshot
func (h *RoomHandler) getRoom(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	if r.URL.Query().Get("live") != "true" {
		writeJSON(w, http.StatusOK, room)
		return
	}

	snapshot, err := h.reconciler.FetchMeetingInfo(r.Context(), room)
	if err != nil {
		if errors.Is(err, bbb.ErrServerRequired) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		log.Printf("Error fetching meeting info for room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to fetch meeting info"})
		return
	}

	writeJSON(w, http.StatusOK, roomStatusResponse{
		Room:             room,
		Running:          snapshot.Running,
		ParticipantCount: snapshot.ParticipantCount,
		ModeratorCount:   snapshot.ModeratorCount,
		Attendees:        snapshot.Attendees,
	})
}

// deleteRoom handles DELETE /api/rooms/{slug}
func (h *RoomHandler) deleteRoom(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	if err := h.repo.DeleteRoom(r.Context(), room.ID); err != nil {
		log.Printf("Error deleting room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete room"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMeetings handles GET /api/rooms/{slug}/meetings
func (h *RoomHandler) listMeetings(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	meetings, err := h.repo.ListMeetingsForRoom(r.Context(), room.ID)
	if err != nil {
		log.Printf("Error listing meetings for room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list meetings"})
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

// startMeetingRequest is the body of POST /api/rooms/{slug}/meetings
type startMeetingRequest struct {
	User *models.User `json:"user,omitempty"`
}

// startMeetingResponse reports whether a new meeting was created
type startMeetingResponse struct {
	Started bool `json:"started"`
}

// startMeeting handles POST /api/rooms/{slug}/meetings
func (h *RoomHandler) startMeeting(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	var req startMeetingRequest
	if r.Body != nil {
		// An empty body means an anonymous start
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	reqCtx := service.RequestContext{
		Protocol: requestProtocol(r),
		Host:     r.Host,
		Headers:  forwardedHeaders(r),
	}

	started, err := h.coordinator.CreateMeeting(r.Context(), room, req.User, reqCtx)
	if err != nil {
		if errors.Is(err, bbb.ErrServerRequired) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		log.Printf("Error creating meeting for room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to create meeting"})
		return
	}

	status := http.StatusOK
	if started {
		status = http.StatusCreated
	}
	writeJSON(w, status, startMeetingResponse{Started: started})
}

// endMeeting handles DELETE /api/rooms/{slug}/meetings
func (h *RoomHandler) endMeeting(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}
	room.RequestHeaders = forwardedHeaders(r)

	if err := h.coordinator.SendEnd(r.Context(), room); err != nil {
		if errors.Is(err, bbb.ErrServerRequired) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		log.Printf("Error ending meeting for room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to end meeting"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// joinMeetingRequest is the body of POST /api/rooms/{slug}/join
type joinMeetingRequest struct {
	Name       string       `json:"name"`
	Role       string       `json:"role,omitempty"`
	Key        string       `json:"key,omitempty"`
	ExternalID string       `json:"external_id,omitempty"`
	User       *models.User `json:"user,omitempty"`
}

// joinMeetingResponse carries the join URL for the browser
type joinMeetingResponse struct {
	JoinURL string `json:"join_url"`
}

// joinMeeting handles POST /api/rooms/{slug}/join
func (h *RoomHandler) joinMeeting(w http.ResponseWriter, r *http.Request, slug string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	var req joinMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// Private rooms grant roles only through their keys; a caller-supplied
	// role is honored for public rooms only.
	role := models.RoleNone
	if !room.Private {
		role = parseRole(req.Role)
	}
	if role == models.RoleNone {
		role = service.ResolveRole(req.Key, room.ModeratorKey, room.AttendeeKey, h.cfg.GuestSupport)
		if role == models.RoleNone {
			if room.Private {
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "key matches no role"})
				return
			}
			// Public rooms admit anyone as a plain attendee
			role = models.RoleAttendee
		}
	}

	joinURL, err := h.coordinator.ParameterizedJoinURL(r.Context(), room, req.Name, role, req.ExternalID, bbb.JoinOptions{}, req.User)
	if err != nil {
		if errors.Is(err, bbb.ErrServerRequired) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, joinMeetingResponse{JoinURL: joinURL})
}

// metadataRequest is the body of PUT /api/rooms/{slug}/metadata/{name}
type metadataRequest struct {
	Value string `json:"value"`
}

// setMetadata handles PUT /api/rooms/{slug}/metadata/{name}
func (h *RoomHandler) setMetadata(w http.ResponseWriter, r *http.Request, slug, name string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	meta := models.Metadata{Owner: models.RoomOwner(room.ID), Name: name, Value: req.Value}
	if err := h.repo.SetMetadata(r.Context(), meta); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error()})
			return
		}
		log.Printf("Error setting metadata for room %s: %v", utils.SanitizeLogString(slug), err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to set metadata"})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// deleteMetadata handles DELETE /api/rooms/{slug}/metadata/{name}
func (h *RoomHandler) deleteMetadata(w http.ResponseWriter, r *http.Request, slug, name string) {
	room := h.loadRoom(w, r, slug)
	if room == nil {
		return
	}

	if err := h.repo.DeleteMetadata(r.Context(), models.RoomOwner(room.ID), name); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "metadata entry not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRole maps the request's role string onto a role; unknown or empty
// strings mean "resolve from the key".
func parseRole(role string) models.Role {
	switch strings.ToLower(role) {
	case "moderator":
		return models.RoleModerator
	case "attendee":
		return models.RoleAttendee
	case "guest":
		return models.RoleGuest
	default:
		return models.RoleNone
	}
}

// requestProtocol derives the scheme of the inbound request, honoring the
// proxy's X-Forwarded-Proto.
func requestProtocol(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto + "://"
	}
	if r.TLS != nil {
		return "https://"
	}
	return "http://"
}

// forwardedHeaders collects the headers tagged onto outbound API calls.
func forwardedHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		headers["X-Forwarded-For"] = ip
	} else if r.RemoteAddr != "" {
		// RemoteAddr is host:port; only the host is forwarded
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		headers["X-Forwarded-For"] = host
	}
	return headers
}
