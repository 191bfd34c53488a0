// Package intake applies a client's renewal response: it validates the
// presented token, records the choice, and invalidates the token so
// the link cannot be replayed.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/metrics"
	"github.com/foxzi/renewly/internal/store"
	"github.com/foxzi/renewly/internal/token"
)

// RejectedError reports a token validation failure. The reason is for
// logs and development responses; production surfaces show a generic
// message.
type RejectedError struct {
	Reason token.Reason
}

func (e *RejectedError) Error() string {
	return string(e.Reason)
}

// Intake handles response submissions
type Intake struct {
	store   store.Store
	tokens  *token.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	rows map[int]*sync.Mutex
}

// New creates an intake handler
func New(s store.Store, tokens *token.Engine, m *metrics.Metrics, logger *slog.Logger) *Intake {
	return &Intake{
		store:   s,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		rows:    make(map[int]*sync.Mutex),
	}
}

// SetClock overrides the intake clock. Used by tests.
func (i *Intake) SetClock(now func() time.Time) {
	i.now = now
}

// Resolve looks up and validates a token without consuming it. Used to
// render the response form.
func (i *Intake) Resolve(ctx context.Context, tok string) (*client.Record, error) {
	rec, err := i.store.GetByToken(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}

	if res := i.tokens.Validate(tok, rec); !res.Valid {
		i.reject(tok, res.Reason)
		return nil, &RejectedError{Reason: res.Reason}
	}

	return rec, nil
}

// Submit records a client's response and invalidates the token.
//
// Submissions for the same record are serialized on a per-row lock,
// and the record is re-resolved and re-validated under that lock, so
// two requests racing on one still-valid token cannot both succeed.
// The response write is the source of truth; a failed invalidation is
// logged but does not undo the response, since the already-responded
// check blocks replay independently of the sentinel.
func (i *Intake) Submit(ctx context.Context, tok, response string) error {
	if !client.IsValidResponse(response) {
		return fmt.Errorf("invalid response value: %q", response)
	}

	rec, err := i.store.GetByToken(ctx, tok)
	if err != nil {
		return fmt.Errorf("token lookup failed: %w", err)
	}
	if res := i.tokens.Validate(tok, rec); !res.Valid {
		i.reject(tok, res.Reason)
		return &RejectedError{Reason: res.Reason}
	}

	lock := i.rowLock(rec.RowIndex)
	lock.Lock()
	defer lock.Unlock()

	// Re-resolve under the lock; the row may have been reindexed or a
	// concurrent submission may have consumed the token.
	rec, err = i.store.GetByToken(ctx, tok)
	if err != nil {
		return fmt.Errorf("token lookup failed: %w", err)
	}
	if res := i.tokens.Validate(tok, rec); !res.Valid {
		i.reject(tok, res.Reason)
		return &RejectedError{Reason: res.Reason}
	}

	today := client.FormatDate(i.now())
	if err := i.store.WriteResponseFields(ctx, rec.RowIndex, response, today); err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}

	if err := i.store.InvalidateToken(ctx, rec.RowIndex); err != nil {
		i.logger.Error("failed to invalidate token after recording response",
			"client_id", rec.ClientID,
			"row", rec.RowIndex,
			"error", err,
		)
	}

	if i.metrics != nil {
		i.metrics.ResponsesTotal.WithLabelValues(response).Inc()
	}
	i.logger.Info("response recorded",
		"client_id", rec.ClientID,
		"response", response,
	)
	return nil
}

func (i *Intake) reject(tok string, reason token.Reason) {
	if i.metrics != nil {
		i.metrics.TokensRejectedTotal.WithLabelValues(string(reason)).Inc()
	}
	i.logger.Warn("token rejected", "reason", string(reason))
}

func (i *Intake) rowLock(row int) *sync.Mutex {
	i.mu.Lock()
	defer i.mu.Unlock()

	lock, ok := i.rows[row]
	if !ok {
		lock = &sync.Mutex{}
		i.rows[row] = lock
	}
	return lock
}
