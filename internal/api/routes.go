package api

import (
	"net/http"

	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/service"
)

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(repo repository.Repository, coordinator *service.Coordinator, reconciler *service.Reconciler, dialNumbers *service.DialNumbers, events *EventsHandler, cfg config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	mux.HandleFunc("/health/live", HealthLiveHandler)
	mux.HandleFunc("/health/ready", HealthReadyHandler)

	// Room management and lifecycle endpoints
	roomHandler := NewRoomHandler(repo, coordinator, reconciler, dialNumbers, cfg)
	mux.Handle("/api/rooms", roomHandler)
	mux.Handle("/api/rooms/", roomHandler)

	// Meeting update stream
	mux.Handle("/events", events)

	return mux
}
