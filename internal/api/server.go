// Package api serves the public response endpoint and the
// administrative HTTP surface.
package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/renewly/internal/config"
	"github.com/foxzi/renewly/internal/intake"
	"github.com/foxzi/renewly/internal/metrics"
	"github.com/foxzi/renewly/internal/pipeline"
	"github.com/foxzi/renewly/internal/store"
)

// Server is the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	intake     *intake.Intake
	store      store.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tlsConfig  *tls.Config
	startTime  time.Time
}

// Options configures the server
type Options struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Intake    *intake.Intake
	Store     store.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	TLSConfig *tls.Config
}

// NewServer creates the HTTP server
func NewServer(opts Options) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       opts.Config,
		pipeline:  opts.Pipeline,
		intake:    opts.Intake,
		store:     opts.Store,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tlsConfig: opts.TLSConfig,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)

	// Public response endpoint; auth is possession of the token
	s.router.Route("/response/{token}", func(r chi.Router) {
		r.Get("/", s.handleResponseForm)
		r.Post("/", s.handleResponseSubmit)
	})

	// Admin endpoints
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/run", s.handleRun)
		r.Get("/stats", s.handleStats)
	})

	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}
}

// ListenAndServe starts the HTTP server, with TLS when configured
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		TLSConfig:    s.tlsConfig,
	}

	if s.tlsConfig != nil {
		s.logger.Info("starting HTTPS server", "addr", s.cfg.Server.ListenAddr)
		return s.httpServer.ListenAndServeTLS("", "")
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the chi router. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
