package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openconf/brooms/internal/api"
	"github.com/openconf/brooms/internal/bbb"
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/repository"
	"github.com/openconf/brooms/internal/service"
	"github.com/openconf/brooms/internal/tasks"
)

func main() {
	cfg := config.GetConfig()

	// Initialize the repository using the factory
	repo, err := repository.NewRepository(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	if closer, ok := repo.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("Error closing repository connection: %v", err)
			}
		}()
	}

	// The conferencing server; lifecycle operations fail with a server
	// required error until one is configured.
	selector := &bbb.StaticSelector{}
	if cfg.BBB.IsBBBConfigValid() {
		selector.Server = bbb.NewClient(cfg.BBB.Endpoint, cfg.BBB.Secret)
	} else {
		log.Println("No conferencing server configured; lifecycle operations will fail until BBB_ENDPOINT and BBB_SECRET are set")
	}

	// Task queue: Redis-backed when Redis is enabled so tasks survive
	// restarts, in-process timers otherwise.
	var queue tasks.Queue
	var setHandler func(tasks.Handler)
	var stopQueue func()
	if cfg.Redis.Enabled {
		redisQueue, err := tasks.NewRedisQueue(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		queue = redisQueue
		setHandler = redisQueue.SetHandler
		redisQueue.Start()
		stopQueue = func() {
			redisQueue.Stop()
			if err := redisQueue.Close(); err != nil {
				log.Printf("Error closing task queue connection: %v", err)
			}
		}
	} else {
		memQueue := tasks.NewMemoryQueue()
		queue = memQueue
		setHandler = memQueue.SetHandler
		stopQueue = func() {}
	}

	// Lifecycle components. No recording syncer is wired yet, which
	// disables the sync retry ladder entirely.
	recordings := service.NewRecordingScheduler(queue, cfg.RecordingSyncIntervals, nil)
	reconciler := service.NewReconciler(repo, selector, recordings, cfg)
	coordinator := service.NewCoordinator(repo, selector, reconciler, queue, cfg)
	dialNumbers := service.NewDialNumbers(repo)

	// Background task dispatch
	mux := tasks.NewMux()
	service.RegisterTaskHandlers(mux, repo, reconciler, recordings)
	setHandler(mux.Dispatch)

	// Meeting updates stream
	events := api.NewEventsHandler()
	reconciler.RegisterUpdateCallback(events.NotifyMeetingUpdate)

	routes := api.SetupRoutes(repo, coordinator, reconciler, dialNumbers, events, cfg)

	// Get port from environment variable or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      routes,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("Starting brooms server on port %s", port)
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for an interrupt or terminate signal from the OS
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Error starting server: %v", err)

	case <-shutdown:
		log.Println("Shutting down server...")

		// Stop accepting background work and close SSE connections first
		stopQueue()
		events.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			log.Fatalf("Error shutting down server: %v", err)
		}

		log.Println("Server gracefully stopped")
	}
}
