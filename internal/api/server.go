package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/axle/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, deps Dependencies, version string) *Server {
	handler := NewHandler(cfg, deps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)                             // CORS for browser clients
	router.Use(RecoverMiddleware(handler.cfg.Environment)) // Recover from panics
	router.Use(TracingMiddleware)                          // OpenTelemetry tracing
	router.Use(LoggingMiddleware)                          // Request logging
	router.Use(MetricsMiddleware(deps.Metrics))            // Route latency
	router.Use(middleware.RealIP)                          // Extract real IP

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	if deps.Stream != nil {
		router.Method(http.MethodGet, "/ws/notifications", deps.Stream)
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5)) // Gzip compression

		r.Get("/", handler.Root)
		r.Get("/info", handler.Info)

		// Scoring and plate recognition
		r.Post("/predict", handler.Predict)
		r.Post("/detect-plate", handler.DetectPlate)

		// Dashboard reads and workflow
		r.Get("/alerts", handler.ListAlerts)
		r.Get("/alerts/{id}", handler.GetAlert)
		r.Get("/notifications", handler.ListNotifications)
		r.Patch("/notifications/{id}", handler.UpdateNotification)

		// Advisory rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  handler.cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
