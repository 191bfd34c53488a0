package client

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validation limits for manually entered names
const (
	minNameLen = 2
	maxNameLen = 100
)

var validSubscriptionStatuses = map[string]bool{
	StatusActive:    true,
	StatusExpired:   true,
	StatusCancelled: true,
}

var validPaymentStatuses = map[string]bool{
	PaymentPaid:    true,
	PaymentPending: true,
	PaymentOverdue: true,
}

// IsValidEmail checks email syntax
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IsValidName checks client name length. The limits count characters,
// not bytes, so multi-byte names are measured fairly.
func IsValidName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= minNameLen && n <= maxNameLen
}

// IsValidSubscriptionStatus checks the subscription status enum
func IsValidSubscriptionStatus(status string) bool {
	return validSubscriptionStatuses[status]
}

// IsValidPaymentStatus checks the payment status enum
func IsValidPaymentStatus(status string) bool {
	return validPaymentStatuses[status]
}

// Validate runs structural validation on a record and returns the list
// of problems found. Malformed rows are expected noise in a manually
// edited store; callers treat a non-empty result as "skip this row",
// not as a pipeline failure.
func (r *Record) Validate() []string {
	var errs []string

	if strings.TrimSpace(r.ClientID) == "" {
		errs = append(errs, "client id is required")
	}
	if !IsValidName(r.Name) {
		errs = append(errs, "client name must be 2-100 characters")
	}
	if !IsValidEmail(r.Email) {
		errs = append(errs, "invalid email format")
	}

	start, startErr := ParseDate(r.StartDate)
	if startErr != nil {
		errs = append(errs, "invalid start date")
	}
	expiry, expiryErr := ParseDate(r.ExpiryDate)
	if expiryErr != nil {
		errs = append(errs, "invalid expiry date")
	}
	if startErr == nil && expiryErr == nil && !expiry.After(start) {
		errs = append(errs, "expiry date must be after start date")
	}

	if !IsValidSubscriptionStatus(r.SubscriptionStatus) {
		errs = append(errs, "invalid subscription status (must be: Active, Expired, or Cancelled)")
	}
	if !IsValidPaymentStatus(r.PaymentStatus) {
		errs = append(errs, "invalid payment status (must be: Paid, Pending, or Overdue)")
	}

	return errs
}

// Valid reports whether the record passes structural validation.
func (r *Record) Valid() bool {
	return len(r.Validate()) == 0
}

// IsValidResponse checks a submitted response value against the
// enumerated choices a client may pick.
func IsValidResponse(response string) bool {
	return response == ResponseInterested || response == ResponseNotInterested
}
