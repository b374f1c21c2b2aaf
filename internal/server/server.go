// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tenderops/remixbridge/internal/compile"
	"github.com/tenderops/remixbridge/internal/config"
	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/internal/middleware/logging"
	"github.com/tenderops/remixbridge/internal/middleware/ratelimit"
	"github.com/tenderops/remixbridge/internal/observability/metrics"
	"github.com/tenderops/remixbridge/internal/plugin"
)

// maxBodySize caps request bodies. Verification inputs are small; the
// compilation payload travels over the websocket, not these routes.
const maxBodySize = 1 << 20

// Server is the HTTP server
type Server struct {
	cfg      *config.Config
	plugin   *plugin.Plugin
	hub      *hostbridge.Hub
	snapshot *compile.Snapshot
	logger   *slog.Logger
	router   *chi.Mux
}

// New creates a new server
func New(cfg *config.Config, p *plugin.Plugin, hub *hostbridge.Hub, snapshot *compile.Snapshot, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		plugin:   p,
		hub:      hub,
		snapshot: snapshot,
		logger:   logger,
		router:   chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// 1. Body size limit
	s.router.Use(maxBodySizeMiddleware(maxBodySize))

	// 2. Rate limiting (bypasses health checks and the websocket)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 3. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)

	// 4. CORS: the IDE plugin iframe calls the bridge from a browser
	// origin.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	// Prometheus
	s.router.Get("/metrics", metrics.Handler().ServeHTTP)

	// IDE host connection
	s.router.Get("/ws", s.handleWebsocket)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSessionStatus)
		r.Post("/session", s.handleSessionSet)
		r.Delete("/session", s.handleSessionClear)

		r.Get("/projects", s.handleProjects)
		r.Post("/project", s.handleProjectSelect)

		r.Get("/contracts", s.handleContracts)
		r.Get("/networks", s.handleNetworks)
		r.Get("/compiled", s.handleCompiled)

		r.Post("/verify", s.handleVerify)
		r.Post("/import", s.handleImport)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// maxBodySizeMiddleware limits request body size.
func maxBodySizeMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
