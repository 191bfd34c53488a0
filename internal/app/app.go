// Package app wires configuration, storage, the reminder pipeline,
// the response intake and the HTTP server into a running service.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foxzi/renewly/internal/api"
	"github.com/foxzi/renewly/internal/config"
	"github.com/foxzi/renewly/internal/dkim"
	"github.com/foxzi/renewly/internal/eligibility"
	"github.com/foxzi/renewly/internal/intake"
	"github.com/foxzi/renewly/internal/mailer"
	"github.com/foxzi/renewly/internal/metrics"
	"github.com/foxzi/renewly/internal/pipeline"
	"github.com/foxzi/renewly/internal/scheduler"
	"github.com/foxzi/renewly/internal/store"
	renewlyTLS "github.com/foxzi/renewly/internal/tls"
	"github.com/foxzi/renewly/internal/token"
)

// App is the main application
type App struct {
	config      *config.Config
	store       store.Store
	pipeline    *pipeline.Pipeline
	scheduler   *scheduler.Scheduler
	apiServer   *api.Server
	metrics     *metrics.Metrics
	logger      *slog.Logger
	acmeManager *renewlyTLS.ACMEManager
	acmeServer  *http.Server
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open client store: %w", err)
	}
	logger.Info("client store opened", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	tokens := token.NewEngine(token.Config{
		SecretKey:       cfg.Security.SecretKey,
		SignatureLength: cfg.Reminder.SignatureLength,
		ExpiryDays:      cfg.Reminder.TokenExpiryDays,
	})

	eval := eligibility.New(cfg.LeadDays(), time.Now)

	var signer *dkim.Signer
	if cfg.DKIM.Enabled {
		signer, err = dkim.NewSigner(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to load DKIM key: %w", err)
		}
		logger.Info("DKIM signing enabled", "domain", cfg.DKIM.Domain, "selector", cfg.DKIM.Selector)
	}

	m := metrics.New()

	mail := mailer.New(cfg.SMTP, cfg.Server.BaseURL, cfg.Reminder.CompanyName, signer, logger.With("component", "mailer"))

	pipe := pipeline.New(st, tokens, eval, mail, m, pipeline.Config{
		AllowOverlappingRuns: cfg.Schedule.AllowOverlappingRuns,
	}, logger.With("component", "pipeline"))

	ink := intake.New(st, tokens, m, logger.With("component", "intake"))

	hour, minute := cfg.RunTime()
	sched := scheduler.New(hour, minute, func(ctx context.Context) {
		if _, err := pipe.Run(ctx); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	}, logger.With("component", "scheduler"))

	// TLS for the public response endpoint
	var tlsConfig *tls.Config
	var acmeManager *renewlyTLS.ACMEManager

	if cfg.TLS.ACME.Enabled {
		acmeManager = renewlyTLS.NewACMEManager(cfg.TLS.ACME)
		tlsConfig = acmeManager.TLSConfig()
		logger.Info("ACME (Let's Encrypt) enabled", "domains", cfg.TLS.ACME.Domains)
	} else if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		tlsConfig, err = renewlyTLS.LoadCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		logger.Info("TLS enabled with manual certificates")
	}

	apiServer := api.NewServer(api.Options{
		Config:    cfg,
		Pipeline:  pipe,
		Intake:    ink,
		Store:     st,
		Metrics:   m,
		Logger:    logger.With("component", "api"),
		TLSConfig: tlsConfig,
	})

	return &App{
		config:      cfg,
		store:       st,
		pipeline:    pipe,
		scheduler:   sched,
		apiServer:   apiServer,
		metrics:     m,
		logger:      logger,
		acmeManager: acmeManager,
	}, nil
}

// Pipeline returns the reminder pipeline. Used by the one-shot run command.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close releases resources without running the servers. Used by
// commands that wire the app but never call Run.
func (a *App) Close() error {
	return a.store.Close()
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting renewly",
		"listen_addr", a.config.Server.ListenAddr,
		"base_url", a.config.Server.BaseURL,
		"environment", a.config.Server.Environment,
		"schedule_at", a.config.Schedule.At,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	// Start ACME HTTP challenge server on port 80 if ACME is enabled
	if a.acmeManager != nil {
		a.acmeServer = &http.Server{
			Addr: ":80",
			Handler: a.acmeManager.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				target := "https://" + r.Host + r.URL.Path
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusMovedPermanently)
			})),
		}
		go func() {
			a.logger.Info("starting ACME HTTP challenge server", "addr", ":80")
			if err := a.acmeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Warn("ACME HTTP server error", "error", err)
			}
		}()

		warmCtx, warmCancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := a.acmeManager.Warm(warmCtx); err != nil {
			a.logger.Warn("certificate warm-up failed, will retry on first request", "error", err)
		}
		warmCancel()
	}

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	a.scheduler.Start(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the scheduler first so no new run starts mid-shutdown
	a.scheduler.Stop()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	if a.acmeServer != nil {
		if err := a.acmeServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("acme server shutdown error", "error", err)
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
