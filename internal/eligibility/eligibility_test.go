package eligibility

import (
	"testing"
	"time"

	"github.com/foxzi/renewly/internal/client"
)

var testNow = time.Date(2026, 8, 31, 14, 30, 0, 0, time.Local)

func eligibleRecord() *client.Record {
	return &client.Record{
		ClientID:           "CL001",
		Name:               "Test Client",
		Email:              "client@test.com",
		StartDate:          "2025-09-05",
		ExpiryDate:         "2026-09-05", // exactly 5 days from testNow
		SubscriptionStatus: client.StatusActive,
		PaymentStatus:      client.PaymentPaid,
		ReminderSent:       "No",
		Response:           client.ResponseNone,
	}
}

func TestIsEligible(t *testing.T) {
	ev := New(5, func() time.Time { return testNow })

	tests := []struct {
		name   string
		mutate func(*client.Record)
		want   bool
	}{
		{"due exactly on lead day", func(r *client.Record) {}, true},
		{"expiry one day early", func(r *client.Record) { r.ExpiryDate = "2026-09-04" }, false},
		{"expiry one day late", func(r *client.Record) { r.ExpiryDate = "2026-09-06" }, false},
		{"expiry today", func(r *client.Record) { r.ExpiryDate = "2026-08-31" }, false},
		{"expired subscription", func(r *client.Record) { r.SubscriptionStatus = client.StatusExpired }, false},
		{"cancelled subscription", func(r *client.Record) { r.SubscriptionStatus = client.StatusCancelled }, false},
		{"pending payment", func(r *client.Record) { r.PaymentStatus = client.PaymentPending }, false},
		{"overdue payment", func(r *client.Record) { r.PaymentStatus = client.PaymentOverdue }, false},
		{"already reminded", func(r *client.Record) { r.ReminderSent = "Yes" }, false},
		{"reminded via checkbox value", func(r *client.Record) { r.ReminderSent = "TRUE" }, false},
		{"bad email", func(r *client.Record) { r.Email = "nope" }, false},
		{"blank client id", func(r *client.Record) { r.ClientID = " " }, false},
		{"unparseable expiry", func(r *client.Record) { r.ExpiryDate = "soon" }, false},
		{"slash-format expiry on lead day", func(r *client.Record) { r.ExpiryDate = "05/09/2026" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := eligibleRecord()
			tt.mutate(rec)
			if got := ev.IsEligible(rec); got != tt.want {
				t.Errorf("IsEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsEligibleIgnoresTimeOfDay(t *testing.T) {
	// Eligibility compares calendar days, not instants
	lateNight := time.Date(2026, 8, 31, 23, 59, 59, 0, time.Local)
	ev := New(5, func() time.Time { return lateNight })

	if !ev.IsEligible(eligibleRecord()) {
		t.Error("IsEligible() = false late in the day, want true")
	}
}

func TestZeroLeadDays(t *testing.T) {
	ev := New(0, func() time.Time { return testNow })

	rec := eligibleRecord()
	rec.ExpiryDate = "2026-08-31"
	if !ev.IsEligible(rec) {
		t.Error("IsEligible() = false for expiry today with zero lead, want true")
	}
}

func TestNegativeLeadDaysClamped(t *testing.T) {
	ev := New(-3, func() time.Time { return testNow })
	if ev.LeadDays() != 0 {
		t.Errorf("LeadDays() = %d, want 0", ev.LeadDays())
	}
}
