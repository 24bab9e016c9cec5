package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/models"
	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/tasks"
	"github.com/openconf/brooms/internal/utils"
)

// reconcileDelay is how long after a create call the follow-up
// reconciliation runs; long enough for the remote server to settle.
const reconcileDelay = 10 * time.Second

// Coordinator orchestrates the create/join/end flows of a room, mediating
// between the store, the conferencing server and the task queue. It owns the
// room's transient state for the duration of a call; durable state changes
// go through the repository.
type Coordinator struct {
	repo       repository.Repository
	selector   bbb.ServerSelector
	reconciler *Reconciler
	queue      tasks.Queue
	cfg        config.Config
}

// NewCoordinator creates a Coordinator over the given collaborators.
func NewCoordinator(repo repository.Repository, selector bbb.ServerSelector, reconciler *Reconciler, queue tasks.Queue, cfg config.Config) *Coordinator {
	return &Coordinator{
		repo:       repo,
		selector:   selector,
		reconciler: reconciler,
		queue:      queue,
		cfg:        cfg,
	}
}

// RequestContext carries the pieces of the inbound request the lifecycle
// needs: the scheme and host for logout URL normalization and any headers to
// tag onto outbound API calls.
type RequestContext struct {
	Protocol string // e.g. "https://"
	Host     string
	Headers  map[string]string
}

// CreateMeeting starts a meeting for the room unless one is already live.
// Returns false with no side effects when the meeting is running: this is
// the room-level duplicate-create guard. Errors from the liveness pre-check
// propagate; only a clean "running" answer suppresses the create.
func (c *Coordinator) CreateMeeting(ctx context.Context, room *models.Room, user *models.User, reqCtx RequestContext) (bool, error) {
	room.RequestHeaders = reqCtx.Headers

	running, err := c.reconciler.IsRunning(ctx, room)
	if err != nil {
		return false, err
	}
	if running {
		return false, nil
	}

	room.FullLogoutURL = NormalizeLogoutURL(room, reqCtx.Protocol, reqCtx.Host)
	if _, err := c.SendCreate(ctx, room, user); err != nil {
		return false, err
	}
	return true, nil
}

// SendCreate performs the remote create call. Missing credentials are
// generated first; on success the server-issued passwords and voice bridge
// are persisted, a new meeting record is created, and a delayed
// reconciliation converges the running state once the server has settled.
func (c *Coordinator) SendCreate(ctx context.Context, room *models.Room, user *models.User) (*bbb.CreateResponse, error) {
	if room.MeetingID == "" {
		room.MeetingID = GenerateMeetingID()
	}
	if room.ModeratorPW == "" {
		room.ModeratorPW = GenerateInternalPassword()
	}
	if room.AttendeePW == "" {
		room.AttendeePW = GenerateInternalPassword()
	}

	// Persist the backfilled credentials when the room is a durable record
	if room.ID != "" {
		if err := c.repo.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
	}

	opts, err := c.buildCreateOptions(ctx, room, user)
	if err != nil {
		return nil, err
	}

	server, err := c.selector.ServerFor(ctx, room, bbb.OpCreate)
	if err != nil {
		return nil, err
	}

	resp, err := server.CreateMeeting(bbb.WithRequestHeaders(ctx, room.RequestHeaders), room.Name, room.MeetingID, opts)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	// The server's credentials replace the internal placeholders
	if resp.ModeratorPW != "" {
		room.ModeratorPW = resp.ModeratorPW
	}
	if resp.AttendeePW != "" {
		room.AttendeePW = resp.AttendeePW
	}
	if resp.VoiceBridge != "" {
		room.VoiceBridge = resp.VoiceBridge
	}
	if room.ID != "" {
		if err := c.repo.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
	}

	meeting := &models.Meeting{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		CreatedAt: time.Now(),
	}
	if user != nil {
		meeting.CreatorID = user.ID
		meeting.CreatorName = user.Name
	}
	if err := c.repo.SaveMeeting(ctx, meeting); err != nil {
		return nil, err
	}
	c.reconciler.notifyUpdate(meeting)

	if err := c.queue.EnqueueDelayed(ctx, reconcileDelay, tasks.TypeReconcileMeeting, room.ID); err != nil {
		// The meeting exists either way; the next fetch will converge it
		log.Printf("Error scheduling reconciliation for room %s: %v", utils.SanitizeLogString(room.ID), err)
	}
	return resp, nil
}

// SendEnd asks the remote server to end the room's meeting, then schedules
// an immediate reconciliation so local state converges faster than the
// delayed default.
func (c *Coordinator) SendEnd(ctx context.Context, room *models.Room) error {
	server, err := c.selector.ServerFor(ctx, room, bbb.OpEnd)
	if err != nil {
		return err
	}

	if err := server.EndMeeting(bbb.WithRequestHeaders(ctx, room.RequestHeaders), room.MeetingID, room.ModeratorPW); err != nil {
		return err
	}

	if err := c.queue.Enqueue(ctx, tasks.TypeReconcileMeeting, room.ID); err != nil {
		log.Printf("Error scheduling reconciliation for room %s: %v", utils.SanitizeLogString(room.ID), err)
	}
	return nil
}

// JoinURL builds the join URL for a participant. The password follows the
// role; with no role specified it is resolved from the presented key. Guests
// get the guest flag merged when guest support is enabled.
func (c *Coordinator) JoinURL(ctx context.Context, room *models.Room, username string, role models.Role, key string, opts bbb.JoinOptions) (string, error) {
	var password string
	switch role {
	case models.RoleModerator:
		password = room.ModeratorPW
	case models.RoleAttendee:
		password = room.AttendeePW
	case models.RoleGuest:
		password = room.AttendeePW
		if c.cfg.GuestSupport {
			opts.Guest = true
		}
	case models.RoleNone:
		pw, ok := PasswordForKey(key, room.AttendeeKey, room.AttendeePW, room.ModeratorKey, room.ModeratorPW)
		if !ok {
			return "", fmt.Errorf("presented key matches no role for room %s", room.Slug)
		}
		password = pw
	}

	server, err := c.selector.ServerFor(ctx, room, bbb.OpJoin)
	if err != nil {
		return "", err
	}

	joinURL, err := server.JoinMeetingURL(room.MeetingID, username, password, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(joinURL, " \t\r\n"), nil
}

// ParameterizedJoinURL augments the join options with the current meeting's
// create time and the caller's external ID before building the URL. Values
// the caller set explicitly are never overwritten; the application's join
// options hook fills only keys still unset after that.
func (c *Coordinator) ParameterizedJoinURL(ctx context.Context, room *models.Room, username string, role models.Role, externalID string, opts bbb.JoinOptions, user *models.User) (string, error) {
	if username == "" && user != nil {
		username = user.Name
	}
	if externalID == "" && user != nil {
		externalID = user.ID
	}

	current, err := c.reconciler.CurrentMeeting(ctx, room)
	if err != nil {
		log.Printf("Error loading current meeting for room %s: %v", utils.SanitizeLogString(room.ID), err)
	}
	if opts.CreateTime == 0 && current != nil && current.CreateTime > 0 {
		opts.CreateTime = current.CreateTime
	}
	if opts.UserID == "" && externalID != "" {
		opts.UserID = externalID
	}

	if c.cfg.JoinOptions != nil {
		for key, value := range c.cfg.JoinOptions(room.ID) {
			// Raw hook keys naming a struct field are mapped back onto
			// it so the Extra pass cannot override a caller-set value
			switch key {
			case "createTime":
				if opts.CreateTime == 0 {
					if createTime, err := strconv.ParseInt(value, 10, 64); err == nil {
						opts.CreateTime = createTime
					}
				}
			case "userID":
				if opts.UserID == "" {
					opts.UserID = value
				}
			case "guest":
				if !opts.Guest {
					opts.Guest, _ = strconv.ParseBool(value)
				}
			default:
				if opts.Extra == nil {
					opts.Extra = make(map[string]string)
				}
				if _, set := opts.Extra[key]; !set {
					opts.Extra[key] = value
				}
			}
		}
	}

	return c.JoinURL(ctx, room, username, role, "", opts)
}

// buildCreateOptions merges create-time parameters in documented precedence
// order, lowest first: room fields, local voice bridge, user identity
// metadata, invitation URL metadata, room metadata entries, application
// hook overrides.
func (c *Coordinator) buildCreateOptions(ctx context.Context, room *models.Room, user *models.User) (bbb.CreateOptions, error) {
	logoutURL := room.FullLogoutURL
	if logoutURL == "" {
		logoutURL = room.LogoutURL
	}

	opts := bbb.CreateOptions{
		Welcome:                 room.Welcome,
		Record:                  room.Record,
		Duration:                room.Duration,
		ModeratorOnlyMessage:    room.ModeratorOnlyMessage,
		AutoStartRecording:      room.AutoStartRecording,
		AllowStartStopRecording: room.AllowStartStopRecording,
		MaxParticipants:         room.MaxParticipants,
		LogoutURL:               logoutURL,
	}

	if c.cfg.UseLocalVoiceBridges && room.VoiceBridge != "" {
		opts.VoiceBridge = room.VoiceBridge
	}

	if user != nil {
		opts.SetMeta(c.cfg.UserIDMetadataKey, user.ID)
		opts.SetMeta(c.cfg.UserNameMetadataKey, user.Name)
	}

	if c.cfg.InvitationURL != nil {
		if invitationURL := c.cfg.InvitationURL(room.ID); invitationURL != "" {
			opts.SetMeta(c.cfg.InvitationURLMetadataKey, invitationURL)
		}
	}

	if room.ID != "" {
		entries, err := c.repo.ListMetadata(ctx, models.RoomOwner(room.ID))
		if err != nil {
			return opts, fmt.Errorf("failed to load room metadata: %w", err)
		}
		for _, entry := range entries {
			opts.SetMeta(entry.Name, entry.Value)
		}
	}

	if c.cfg.CreateOptions != nil {
		for key, value := range c.cfg.CreateOptions(room.ID) {
			if opts.Extra == nil {
				opts.Extra = make(map[string]string)
			}
			opts.Extra[key] = value
		}
	}
	return opts, nil
}

// domainPattern recognizes a leading host name in a schemeless URL.
var domainPattern = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9.-]*\.[a-z]{2,}(/|$|:)`)

// NormalizeLogoutURL derives the effective logout URL from the room's stored
// one. A URL without a scheme gets the request host prefixed (only when no
// domain is already present) and then the protocol. The result is
// lower-cased. The stored logout URL is never mutated; this feeds the
// room's transient full logout URL.
func NormalizeLogoutURL(room *models.Room, protocol, host string) string {
	logoutURL := room.LogoutURL
	if logoutURL == "" {
		return ""
	}

	if !strings.Contains(logoutURL, "://") {
		if !domainPattern.MatchString(logoutURL) {
			if !strings.HasPrefix(logoutURL, "/") {
				logoutURL = "/" + logoutURL
			}
			logoutURL = host + logoutURL
		}
		logoutURL = protocol + logoutURL
	}
	return strings.ToLower(logoutURL)
}
