// Package api assembles the HTTP surface: routes, middleware and the server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/jobs"
)

// Config holds server dependencies.
type Config struct {
	Port            string
	Log             zerolog.Logger
	Sessions        handlers.SessionStore
	JobStore        jobs.JobStore
	Publisher       jobs.Publisher
	CheckCredential func() error
	AllowedOrigins  []string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	port   string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		port:   cfg.Port,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger(s.log))
	s.router.Use(middleware.CORS(allowedOrigins...))
}

func (s *Server) setupRoutes(cfg Config) {
	sessionsHandler := handlers.NewSessionsHandler(cfg.Sessions, s.log)
	statementsHandler := handlers.NewStatementsHandler(cfg.Sessions, cfg.Publisher, cfg.CheckCredential, s.log)
	dashboardHandler := handlers.NewDashboardHandler(cfg.Sessions, s.log)
	jobsHandler := handlers.NewJobsHandler(cfg.JobStore, s.log)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionsHandler.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionsHandler.GetSession)
				r.Delete("/", sessionsHandler.ClearSession)

				r.Post("/statements", statementsHandler.UploadStatement)
				r.Get("/jobs", jobsHandler.ListSessionJobs)

				r.Get("/months", dashboardHandler.ListMonths)
				r.Get("/categories", dashboardHandler.ListCategories)
				r.Get("/dashboard", dashboardHandler.GetDashboard)
				r.Get("/transactions", dashboardHandler.ListTransactions)
			})
		})

		r.Get("/jobs/{id}", jobsHandler.GetJob)
	})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
