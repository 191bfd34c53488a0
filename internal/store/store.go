// Package store provides the row-indexed client store the reminder
// pipeline reads and writes. Two backends are available: an embedded
// bolt store and a sqlite store. Row indexes are lookup hints, not
// stable identities; callers re-resolve records before writing.
package store

import (
	"context"
	"fmt"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/config"
)

// Store defines the client store operations the core depends on.
// Each write method updates its field group atomically; there are no
// partial-field writes.
type Store interface {
	// FetchAll returns all client records in store order, each tagged
	// with its row index. An empty store yields an empty slice.
	FetchAll(ctx context.Context) ([]client.Record, error)

	// GetByToken resolves a record by its stored token value.
	// Returns nil, nil when no record carries the token.
	GetByToken(ctx context.Context, token string) (*client.Record, error)

	// WriteReminderFields records that a reminder went out: the marker,
	// the reminder date, and the freshly minted token with its expiry.
	WriteReminderFields(ctx context.Context, row int, reminderDate, token, tokenExpiry string) error

	// WriteResponseFields records the client's choice and its date.
	WriteResponseFields(ctx context.Context, row int, response, responseDate string) error

	// InvalidateToken writes the USED sentinel and clears the token expiry.
	InvalidateToken(ctx context.Context, row int) error

	// Append adds a new record and returns its row index.
	// Used by seeding tooling and tests.
	Append(ctx context.Context, rec *client.Record) (int, error)

	// Count returns the number of records
	Count(ctx context.Context) (int, error)

	// Close closes the store
	Close() error
}

// Open opens the configured store backend
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "bolt":
		return OpenBolt(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// findByToken is the shared token lookup: a full scan over store
// order, first match wins.
func findByToken(ctx context.Context, s Store, token string) (*client.Record, error) {
	if token == "" {
		return nil, nil
	}
	records, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Token == token {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, nil
}
