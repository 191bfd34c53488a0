package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/foxzi/renewly/internal/client"
)

const migrationClients = `
CREATE TABLE IF NOT EXISTS clients (
	row_index INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	mobile TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL DEFAULT '',
	expiry_date TEXT NOT NULL DEFAULT '',
	subscription_status TEXT NOT NULL DEFAULT '',
	payment_status TEXT NOT NULL DEFAULT '',
	reminder_sent TEXT NOT NULL DEFAULT 'No',
	reminder_date TEXT NOT NULL DEFAULT '',
	token TEXT NOT NULL DEFAULT '',
	token_expiry TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL DEFAULT 'No Response',
	response_date TEXT NOT NULL DEFAULT ''
)`

// SQLiteStore implements Store on a sqlite table; row_index is the
// autoincrement primary key, so SELECT ... ORDER BY row_index yields
// store order.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a sqlite-backed client store
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(migrationClients); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const selectColumns = `row_index, client_id, name, email, mobile, start_date, expiry_date,
	subscription_status, payment_status, reminder_sent, reminder_date,
	token, token_expiry, response, response_date`

// FetchAll returns all records in row order
func (s *SQLiteStore) FetchAll(ctx context.Context) ([]client.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM clients ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	records := []client.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetByToken resolves a record by its stored token
func (s *SQLiteStore) GetByToken(ctx context.Context, token string) (*client.Record, error) {
	if token == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM clients WHERE token = ? ORDER BY row_index LIMIT 1`, token)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteReminderFields marks the row as reminded and stores the token
func (s *SQLiteStore) WriteReminderFields(ctx context.Context, row int, reminderDate, token, tokenExpiry string) error {
	return s.update(ctx, row,
		`UPDATE clients SET reminder_sent = 'Yes', reminder_date = ?, token = ?, token_expiry = ? WHERE row_index = ?`,
		reminderDate, token, tokenExpiry, row)
}

// WriteResponseFields records the client's response
func (s *SQLiteStore) WriteResponseFields(ctx context.Context, row int, response, responseDate string) error {
	return s.update(ctx, row,
		`UPDATE clients SET response = ?, response_date = ? WHERE row_index = ?`,
		response, responseDate, row)
}

// InvalidateToken writes the USED sentinel and clears the expiry
func (s *SQLiteStore) InvalidateToken(ctx context.Context, row int) error {
	return s.update(ctx, row,
		`UPDATE clients SET token = ?, token_expiry = '' WHERE row_index = ?`,
		client.TokenUsed, row)
}

// Append adds a record at the next row index
func (s *SQLiteStore) Append(ctx context.Context, rec *client.Record) (int, error) {
	stored := *rec
	stored.Normalize()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (client_id, name, email, mobile, start_date, expiry_date,
			subscription_status, payment_status, reminder_sent, reminder_date,
			token, token_expiry, response, response_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ClientID, stored.Name, stored.Email, stored.Mobile, stored.StartDate, stored.ExpiryDate,
		stored.SubscriptionStatus, stored.PaymentStatus, stored.ReminderSent, stored.ReminderDate,
		stored.Token, stored.TokenExpiry, stored.Response, stored.ResponseDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert client: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.RowIndex = int(id)
	return int(id), nil
}

// Count returns the number of records
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	return count, err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) update(ctx context.Context, row int, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update row %d: %w", row, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("row %d not found", row)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*client.Record, error) {
	rec := &client.Record{}
	err := row.Scan(&rec.RowIndex, &rec.ClientID, &rec.Name, &rec.Email, &rec.Mobile,
		&rec.StartDate, &rec.ExpiryDate, &rec.SubscriptionStatus, &rec.PaymentStatus,
		&rec.ReminderSent, &rec.ReminderDate, &rec.Token, &rec.TokenExpiry,
		&rec.Response, &rec.ResponseDate)
	if err != nil {
		return nil, err
	}
	rec.Normalize()
	return rec, nil
}
