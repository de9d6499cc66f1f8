package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/liftlog/internal/queue"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/syncer"
	"github.com/claude/liftlog/internal/tracker"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db      *storage.DB
	tracker *tracker.Tracker
	engine  *syncer.Engine
	queue   *queue.Queue
	recov   *recovery.Service
	log     *slog.Logger
	apiKey  string
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, tr *tracker.Tracker, eng *syncer.Engine, q *queue.Queue, rec *recovery.Service, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:      db,
		tracker: tr,
		engine:  eng,
		queue:   q,
		recov:   rec,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Read endpoints (no auth — tsnet handles access)
	s.router.Get("/api/v1/workouts", s.handleListWorkouts)
	s.router.Get("/api/v1/workouts/{id}", s.handleGetWorkout)
	s.router.Get("/api/v1/current-workout", s.handleGetCurrentWorkout)
	s.router.Get("/api/v1/templates", s.handleListTemplates)
	s.router.Get("/api/v1/sync/status", s.handleSyncStatus)
	s.router.Get("/api/v1/queue", s.handleListQueue)
	s.router.Get("/api/v1/diagnostics", s.handleDiagnostics)
	s.router.Get("/api/v1/stats", s.handleStats)
	s.router.Get("/api/v1/export", s.handleExport)

	// Mutation endpoints (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/workouts", s.handleAddWorkout)
		r.Post("/api/v1/rest-days", s.handleAddRestDay)
		r.Patch("/api/v1/workouts/{id}", s.handleUpdateWorkout)
		r.Delete("/api/v1/workouts/{id}", s.handleDeleteWorkout)
		r.Put("/api/v1/current-workout", s.handleSetCurrentWorkout)
		r.Delete("/api/v1/current-workout", s.handleClearCurrentWorkout)
		r.Post("/api/v1/templates", s.handleAddTemplate)
		r.Put("/api/v1/templates/{id}", s.handleUpdateTemplate)
		r.Delete("/api/v1/templates/{id}", s.handleDeleteTemplate)
		r.Post("/api/v1/templates/{id}/start", s.handleStartFromTemplate)
		r.Post("/api/v1/sync/force", s.handleForceSync)
		r.Post("/api/v1/sync/refresh", s.handleRefresh)
		r.Post("/api/v1/queue/retry", s.handleRetryQueue)
		r.Post("/api/v1/queue/retry/{id}", s.handleRetryQueueOp)
		r.Delete("/api/v1/queue/failed", s.handleClearFailedQueue)
		r.Post("/api/v1/diagnostics/recover", s.handleAutoRecover)
		r.Post("/api/v1/backup", s.handleBackup)
		r.Post("/api/v1/import", s.handleImport)
		r.Post("/api/v1/session", s.handleSignIn)
		r.Delete("/api/v1/session", s.handleSignOut)
	})
}
