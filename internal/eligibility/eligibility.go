// Package eligibility decides whether a client record is due a
// renewal reminder during the current run.
package eligibility

import (
	"time"

	"github.com/foxzi/renewly/internal/client"
)

// Evaluator applies the reminder eligibility rules
type Evaluator struct {
	leadDays int
	now      func() time.Time
}

// New creates an evaluator with the configured lead time
func New(leadDays int, now func() time.Time) *Evaluator {
	if leadDays < 0 {
		leadDays = 0
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{leadDays: leadDays, now: now}
}

// IsEligible reports whether a record should receive a reminder now.
//
// Structural problems exclude the record outright. The business gate
// requires an Active subscription, Paid payment status (extending to
// Pending is a policy change in one condition below), an unset
// reminder marker, and an expiry date exactly leadDays ahead of today.
// The exact-day match means a skipped run permanently skips that
// client's reminder; there is no catch-up.
func (ev *Evaluator) IsEligible(rec *client.Record) bool {
	if !rec.Valid() {
		return false
	}

	if rec.SubscriptionStatus != client.StatusActive {
		return false
	}
	if rec.PaymentStatus != client.PaymentPaid {
		return false
	}

	// Idempotency guard: a record reminded once is never reminded again
	if rec.Reminded() {
		return false
	}

	expiry, err := client.ParseDate(rec.ExpiryDate)
	if err != nil {
		return false
	}

	target := client.Midnight(ev.now()).AddDate(0, 0, ev.leadDays)
	return client.Midnight(expiry).Equal(target)
}

// LeadDays returns the configured lead time
func (ev *Evaluator) LeadDays() int {
	return ev.leadDays
}
