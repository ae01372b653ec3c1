package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nuforge/gamesync/internal/engine"
	"github.com/nuforge/gamesync/internal/publish"
	"github.com/nuforge/gamesync/internal/retry"
	"github.com/nuforge/gamesync/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(syncer *engine.Syncer, coordinator *retry.Coordinator, dlStore *store.DeadLetterStore, pgStore *store.PostgresStore, publisher *publish.Publisher, defaultBatchLimit int) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(corsMiddleware)

	// Handlers
	syncHandler := NewSyncHandler(syncer)
	dlqHandler := NewDeadLetterHandler(dlStore, coordinator, defaultBatchLimit)
	attemptHandler := NewAttemptHandler(pgStore)
	healthHandler := NewHealthHandler(publisher)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Service)
		r.Get("/ingest/health", healthHandler.Ingest)

		r.Route("/sync", func(r chi.Router) {
			r.Post("/events", syncHandler.Event)
			r.Post("/games", syncHandler.Game)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Delete("/", dlqHandler.Clear)
			r.Get("/stats", dlqHandler.Stats)
			r.Post("/process", dlqHandler.Process)
			r.Get("/{id}", dlqHandler.Get)
			r.Delete("/{id}", dlqHandler.Remove)
		})

		r.Get("/attempts", attemptHandler.List)
	})

	return r
}

// corsMiddleware adds CORS headers for operator tooling.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
