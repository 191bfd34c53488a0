package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/config"
)

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()

	s, err := Open(config.StoreConfig{
		Driver: driver,
		Path:   filepath.Join(t.TempDir(), "clients.db"),
	})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", driver, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) *client.Record {
	return &client.Record{
		ClientID:           id,
		Name:               "Test Client",
		Email:              "client@test.com",
		StartDate:          "2025-09-05",
		ExpiryDate:         "2026-09-05",
		SubscriptionStatus: client.StatusActive,
		PaymentStatus:      client.PaymentPaid,
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "postgres", Path: "x"})
	if err == nil {
		t.Fatal("Open() expected error for unknown driver")
	}
}

func TestStoreBackends(t *testing.T) {
	for _, driver := range []string{"bolt", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			testStoreLifecycle(t, openTestStore(t, driver))
		})
	}
}

func testStoreLifecycle(t *testing.T, s Store) {
	ctx := context.Background()

	// Empty store
	records, err := s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("FetchAll() on empty store = %d records, want 0", len(records))
	}

	// Append
	row1, err := s.Append(ctx, sampleRecord("CL001"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	row2, err := s.Append(ctx, sampleRecord("CL002"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if row2 <= row1 {
		t.Errorf("Append() rows = %d, %d; want increasing", row1, row2)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	// Normalization of blank fields
	records, err = s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("FetchAll() = %d records, want 2", len(records))
	}
	if records[0].ReminderSent != "No" {
		t.Errorf("ReminderSent = %q, want \"No\"", records[0].ReminderSent)
	}
	if records[0].Response != client.ResponseNone {
		t.Errorf("Response = %q, want %q", records[0].Response, client.ResponseNone)
	}
	if records[0].RowIndex != row1 {
		t.Errorf("RowIndex = %d, want %d", records[0].RowIndex, row1)
	}

	// Reminder field group
	err = s.WriteReminderFields(ctx, row1, "2026-08-31", "tok-abc.1234567890abcdef", "2026-09-07T09:00:00Z")
	if err != nil {
		t.Fatalf("WriteReminderFields() error = %v", err)
	}

	rec, err := s.GetByToken(ctx, "tok-abc.1234567890abcdef")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if rec == nil {
		t.Fatal("GetByToken() = nil for stored token")
	}
	if rec.RowIndex != row1 {
		t.Errorf("GetByToken().RowIndex = %d, want %d", rec.RowIndex, row1)
	}
	if rec.ReminderSent != "Yes" {
		t.Errorf("ReminderSent = %q, want \"Yes\"", rec.ReminderSent)
	}
	if rec.ReminderDate != "2026-08-31" {
		t.Errorf("ReminderDate = %q, want 2026-08-31", rec.ReminderDate)
	}
	if rec.TokenExpiry != "2026-09-07T09:00:00Z" {
		t.Errorf("TokenExpiry = %q", rec.TokenExpiry)
	}

	// Untouched fields survive the reminder write
	if rec.ClientID != "CL001" {
		t.Errorf("ClientID = %q, want CL001", rec.ClientID)
	}
	if rec.Response != client.ResponseNone {
		t.Errorf("Response = %q, want untouched %q", rec.Response, client.ResponseNone)
	}

	// Unknown token
	missing, err := s.GetByToken(ctx, "no-such-token")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if missing != nil {
		t.Error("GetByToken() expected nil for unknown token")
	}

	// Empty token never matches
	blank, err := s.GetByToken(ctx, "")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if blank != nil {
		t.Error("GetByToken(\"\") expected nil")
	}

	// Response field group
	err = s.WriteResponseFields(ctx, row1, client.ResponseInterested, "2026-09-01")
	if err != nil {
		t.Fatalf("WriteResponseFields() error = %v", err)
	}

	// Token invalidation
	if err := s.InvalidateToken(ctx, row1); err != nil {
		t.Fatalf("InvalidateToken() error = %v", err)
	}

	records, err = s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	updated := records[0]
	if updated.Token != client.TokenUsed {
		t.Errorf("Token = %q, want %q", updated.Token, client.TokenUsed)
	}
	if updated.TokenExpiry != "" {
		t.Errorf("TokenExpiry = %q, want cleared", updated.TokenExpiry)
	}
	if updated.Response != client.ResponseInterested {
		t.Errorf("Response = %q, want %q", updated.Response, client.ResponseInterested)
	}
	if updated.ResponseDate != "2026-09-01" {
		t.Errorf("ResponseDate = %q, want 2026-09-01", updated.ResponseDate)
	}

	// The second row never changed
	if records[1].ReminderSent != "No" {
		t.Errorf("row2 ReminderSent = %q, want \"No\"", records[1].ReminderSent)
	}

	// Writes to a missing row fail
	if err := s.WriteResponseFields(ctx, 9999, client.ResponseInterested, "2026-09-01"); err == nil {
		t.Error("WriteResponseFields() expected error for missing row")
	}
	if err := s.WriteReminderFields(ctx, 9999, "2026-08-31", "t.s", "2026-09-07T09:00:00Z"); err == nil {
		t.Error("WriteReminderFields() expected error for missing row")
	}
	if err := s.InvalidateToken(ctx, 9999); err == nil {
		t.Error("InvalidateToken() expected error for missing row")
	}
}
