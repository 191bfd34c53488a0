package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/renewly/internal/client"
)

var bucketClients = []byte("clients")

// BoltStore implements Store using BoltDB. Rows live in a single
// bucket keyed by big-endian row index, so a cursor walk yields store
// order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens a bolt-backed client store
func OpenBolt(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClients)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// FetchAll returns all records in row order
func (s *BoltStore) FetchAll(ctx context.Context) ([]client.Record, error) {
	records := []client.Record{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketClients).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec client.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			rec.RowIndex = int(binary.BigEndian.Uint64(k))
			rec.Normalize()
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// GetByToken resolves a record by its stored token
func (s *BoltStore) GetByToken(ctx context.Context, token string) (*client.Record, error) {
	return findByToken(ctx, s, token)
}

// WriteReminderFields marks the row as reminded and stores the token
func (s *BoltStore) WriteReminderFields(ctx context.Context, row int, reminderDate, token, tokenExpiry string) error {
	return s.update(row, func(rec *client.Record) {
		rec.ReminderSent = "Yes"
		rec.ReminderDate = reminderDate
		rec.Token = token
		rec.TokenExpiry = tokenExpiry
	})
}

// WriteResponseFields records the client's response
func (s *BoltStore) WriteResponseFields(ctx context.Context, row int, response, responseDate string) error {
	return s.update(row, func(rec *client.Record) {
		rec.Response = response
		rec.ResponseDate = responseDate
	})
}

// InvalidateToken writes the USED sentinel and clears the expiry
func (s *BoltStore) InvalidateToken(ctx context.Context, row int) error {
	return s.update(row, func(rec *client.Record) {
		rec.Token = client.TokenUsed
		rec.TokenExpiry = ""
	})
}

// Append adds a record at the next row index
func (s *BoltStore) Append(ctx context.Context, rec *client.Record) (int, error) {
	var row int

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClients)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		row = int(seq)

		stored := *rec
		stored.Normalize()
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return b.Put(rowKey(row), data)
	})
	if err != nil {
		return 0, err
	}

	rec.RowIndex = row
	return row, nil
}

// Count returns the number of records
func (s *BoltStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketClients).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// update applies a field-group mutation to one row inside a single
// bolt transaction, keeping the write all-or-nothing.
func (s *BoltStore) update(row int, mutate func(*client.Record)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClients)
		key := rowKey(row)

		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("row %d not found", row)
		}

		var rec client.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal row %d: %w", row, err)
		}
		rec.Normalize()

		mutate(&rec)

		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", row, err)
		}
		return b.Put(key, updated)
	})
}

func rowKey(row int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(row))
	return key
}
