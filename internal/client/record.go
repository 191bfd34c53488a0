// Package client defines the client record model of the external
// tabular store and its structural validation rules.
package client

import (
	"time"
)

// Subscription statuses as they appear in the store
const (
	StatusActive    = "Active"
	StatusExpired   = "Expired"
	StatusCancelled = "Cancelled"
)

// Payment statuses as they appear in the store
const (
	PaymentPaid    = "Paid"
	PaymentPending = "Pending"
	PaymentOverdue = "Overdue"
)

// Client response values
const (
	ResponseNone          = "No Response"
	ResponseInterested    = "Interested"
	ResponseNotInterested = "Not Interested"
)

// TokenUsed is the sentinel written into the token field on invalidation.
// Once written, no validation against the record can succeed.
const TokenUsed = "USED"

// Record is one row of the client store. RowIndex is a positional
// lookup hint into the store, not a stable identity; token security
// binds to ClientID and ExpiryDate instead, so reindexing the store
// cannot forge validity.
type Record struct {
	RowIndex int `json:"-"`

	ClientID           string `json:"client_id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Mobile             string `json:"mobile,omitempty"`
	StartDate          string `json:"start_date"`
	ExpiryDate         string `json:"expiry_date"`
	SubscriptionStatus string `json:"subscription_status"`
	PaymentStatus      string `json:"payment_status"`
	ReminderSent       string `json:"reminder_sent"`
	ReminderDate       string `json:"reminder_date,omitempty"`
	Token              string `json:"token,omitempty"`
	TokenExpiry        string `json:"token_expiry,omitempty"`
	Response           string `json:"response"`
	ResponseDate       string `json:"response_date,omitempty"`
}

// Normalize fills the defaults the store applies to blank cells.
func (r *Record) Normalize() {
	if r.ReminderSent == "" {
		r.ReminderSent = "No"
	}
	if r.Response == "" {
		r.Response = ResponseNone
	}
}

// Reminded reports whether the reminder-sent marker is set. The store
// is manually edited, so checkbox-style truthy values count too.
func (r *Record) Reminded() bool {
	return r.ReminderSent == "Yes" || r.ReminderSent == "TRUE"
}

// Responded reports whether the client has already submitted a response.
func (r *Record) Responded() bool {
	return r.Response != ResponseNone
}

// TokenExpiryTime parses the stored token expiry timestamp.
// A blank or malformed value yields the zero time.
func (r *Record) TokenExpiryTime() time.Time {
	if r.TokenExpiry == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.TokenExpiry)
	if err != nil {
		return time.Time{}
	}
	return t
}
