// Package pipeline runs one batch pass of the reminder workflow:
// fetch all client records, filter by eligibility, mint a token per
// eligible record, persist the reminder marker, and hand off to the
// mailer. Failures are isolated per record; only the initial bulk
// fetch is fatal to a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/eligibility"
	"github.com/foxzi/renewly/internal/metrics"
	"github.com/foxzi/renewly/internal/store"
	"github.com/foxzi/renewly/internal/token"
)

// ErrRunInProgress is returned by TryRun when a run is already active
// and overlapping runs are disabled.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// sendTimeout bounds one mail handoff so a stuck relay counts as an
// ordinary per-record failure instead of stalling the batch.
const sendTimeout = 2 * time.Minute

// Mailer is the outbound mail collaborator
type Mailer interface {
	SendReminder(ctx context.Context, rec *client.Record, token string, tokenExpiry time.Time) error
}

// RunStats summarizes one pipeline execution. It is ephemeral:
// returned and logged, never persisted.
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Eligible   int       `json:"eligible"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// Config contains pipeline settings
type Config struct {
	// AllowOverlappingRuns disables the run-level mutex. Overlapping
	// runs can double-send; only for compatibility testing.
	AllowOverlappingRuns bool
}

// Pipeline orchestrates reminder batch runs
type Pipeline struct {
	store   store.Store
	tokens  *token.Engine
	eval    *eligibility.Evaluator
	mailer  Mailer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	allowOverlap bool
	runMu        sync.Mutex
	running      atomic.Bool

	lastMu sync.Mutex
	last   *RunStats
}

// New creates a pipeline
func New(s store.Store, tokens *token.Engine, eval *eligibility.Evaluator, mailer Mailer, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:        s,
		tokens:       tokens,
		eval:         eval,
		mailer:       mailer,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
		allowOverlap: cfg.AllowOverlappingRuns,
	}
}

// SetClock overrides the pipeline clock. Used by tests.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Run executes one batch pass and returns its statistics. With
// overlap protection on (the default), a concurrent call blocks until
// the active run finishes. The returned error is non-nil only for the
// fatal bulk-fetch failure; per-record failures live in the stats.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	if !p.allowOverlap {
		p.runMu.Lock()
		defer p.runMu.Unlock()
	}
	return p.run(ctx)
}

// TryRun executes one batch pass unless another run is already active,
// in which case it returns ErrRunInProgress. Used by the admin trigger.
func (p *Pipeline) TryRun(ctx context.Context) (*RunStats, error) {
	if !p.allowOverlap {
		if !p.runMu.TryLock() {
			return nil, ErrRunInProgress
		}
		defer p.runMu.Unlock()
	}
	return p.run(ctx)
}

// Running reports whether a batch pass is currently active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// AllowsOverlap reports whether overlapping runs are permitted.
func (p *Pipeline) AllowsOverlap() bool {
	return p.allowOverlap
}

// LastRun returns the stats of the most recently finished run, or nil
func (p *Pipeline) LastRun() *RunStats {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return p.last
}

func (p *Pipeline) run(ctx context.Context) (*RunStats, error) {
	p.running.Store(true)
	defer p.running.Store(false)

	stats := &RunStats{
		RunID:     uuid.New().String(),
		StartedAt: p.now(),
	}
	logger := p.logger.With("run_id", stats.RunID)
	logger.Info("starting reminder run", "lead_days", p.eval.LeadDays())

	records, err := p.store.FetchAll(ctx)
	if err != nil {
		// Fatal: without the candidate set there is nothing to recover.
		// The next scheduled run retries naturally.
		logger.Error("failed to fetch client records, aborting run", "error", err)
		stats.Errors = append(stats.Errors, fmt.Sprintf("critical: %v", err))
		p.finish(stats, false)
		return stats, fmt.Errorf("failed to fetch client records: %w", err)
	}

	stats.Total = len(records)
	logger.Info("fetched client records", "total", stats.Total)

	for i := range records {
		rec := &records[i]

		if !p.eval.IsEligible(rec) {
			continue
		}
		stats.Eligible++

		if err := p.processRecord(ctx, rec); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("failed to process %s: %v", rec.Email, err))
			if p.metrics != nil {
				p.metrics.RemindersFailedTotal.Inc()
			}
			logger.Warn("record failed", "email", rec.Email, "client_id", rec.ClientID, "error", err)
			continue
		}

		stats.Sent++
		if p.metrics != nil {
			p.metrics.RemindersSentTotal.Inc()
		}
		logger.Info("reminder processed", "email", rec.Email, "client_id", rec.ClientID)
	}

	p.finish(stats, true)
	logger.Info("reminder run complete",
		"total", stats.Total,
		"eligible", stats.Eligible,
		"sent", stats.Sent,
		"failed", stats.Failed,
	)
	return stats, nil
}

// processRecord handles one eligible record: mint, persist, send.
// A persistence failure after the marker write but before the send
// leaves the record marked but unsent; that inconsistency window is
// accepted, since the marker write and send cannot be made atomic
// against an external store.
func (p *Pipeline) processRecord(ctx context.Context, rec *client.Record) error {
	tok, expiry := p.tokens.Mint(rec.ClientID, rec.ExpiryDate)
	expiryStr := expiry.Format(time.RFC3339)

	today := client.FormatDate(p.now())
	if err := p.store.WriteReminderFields(ctx, rec.RowIndex, today, tok, expiryStr); err != nil {
		return fmt.Errorf("persist failed: %w", err)
	}

	// Keep the in-memory record in step for the mail render
	rec.ReminderSent = "Yes"
	rec.ReminderDate = today
	rec.Token = tok
	rec.TokenExpiry = expiryStr

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := p.mailer.SendReminder(sendCtx, rec, tok, expiry); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	return nil
}

func (p *Pipeline) finish(stats *RunStats, ok bool) {
	stats.FinishedAt = p.now()

	p.lastMu.Lock()
	p.last = stats
	p.lastMu.Unlock()

	if p.metrics != nil {
		result := "ok"
		if !ok {
			result = "fetch_failed"
		}
		p.metrics.RunsTotal.WithLabelValues(result).Inc()
		p.metrics.LastRunTimestamp.Set(float64(stats.FinishedAt.Unix()))
		p.metrics.ClientsTotal.Set(float64(stats.Total))
	}
}
