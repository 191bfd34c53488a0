// Package scheduler triggers the reminder pipeline once daily at a
// configured local time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner is the work the scheduler fires
type Runner func(ctx context.Context)

// Scheduler fires a runner daily at a fixed HH:MM local time
type Scheduler struct {
	hour   int
	minute int
	runner Runner
	logger *slog.Logger
	now    func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a scheduler
func New(hour, minute int, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		hour:   hour,
		minute: minute,
		runner: runner,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// SetClock overrides the scheduler clock. Used by tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start starts the scheduling loop
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started",
		"at", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.UTC).Format("15:04"),
		"next_run", s.nextRun(s.now()),
	)
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.nextRun(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.logger.Info("scheduled run firing", "at", next)
			s.runner(ctx)
		}
	}
}

// nextRun returns the next occurrence of the configured time strictly
// after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
