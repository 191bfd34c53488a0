// Package token implements the single-use reminder token lifecycle:
// minting, validation, and the invalidation contract.
//
// A token has the form "<uuid>.<signature>" where the signature is an
// HMAC-SHA256 over uuid+clientID+expiryDate, hex-encoded and truncated.
// Truncation (default 16 hex chars) keeps links short at the cost of
// brute-force margin; the length is configurable up to the full digest.
// Binding to clientID and expiryDate rather than the row position means
// a token survives store reindexing but dies if the client's expiry
// date is edited.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/renewly/internal/client"
)

// Reason identifies why validation rejected a token. Reasons are for
// logging and development responses; production surfaces map them to a
// generic message.
type Reason string

const (
	ReasonValid            Reason = "valid"
	ReasonNotFound         Reason = "token not found"
	ReasonMismatch         Reason = "token mismatch"
	ReasonAlreadyUsed      Reason = "token already used"
	ReasonInvalidStructure Reason = "invalid token structure"
	ReasonInvalidSignature Reason = "invalid token signature"
	ReasonExpired          Reason = "token expired"
	ReasonAlreadyResponded Reason = "response already submitted"
)

// Result is the outcome of a validation
type Result struct {
	Valid  bool
	Reason Reason
}

// Config contains token engine settings
type Config struct {
	SecretKey       string
	SignatureLength int           // Hex chars kept from the HMAC digest
	ExpiryDays      int           // Token lifetime
	Now             func() time.Time // Injected clock, defaults to time.Now
}

// Engine mints and validates reminder tokens
type Engine struct {
	secret []byte
	sigLen int
	ttl    time.Duration
	now    func() time.Time
}

// NewEngine creates a new token engine
func NewEngine(cfg Config) *Engine {
	if cfg.SignatureLength <= 0 {
		cfg.SignatureLength = 16
	}
	if cfg.SignatureLength > sha256.Size*2 {
		cfg.SignatureLength = sha256.Size * 2
	}
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = 7
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		secret: []byte(cfg.SecretKey),
		sigLen: cfg.SignatureLength,
		ttl:    time.Duration(cfg.ExpiryDays) * 24 * time.Hour,
		now:    cfg.Now,
	}
}

// Mint generates a fresh token bound to a client's business identity.
// It has no side effects; persisting the token on the record is the
// caller's job, and doing so supersedes any prior token.
func (e *Engine) Mint(clientID, expiryDate string) (token string, expiry time.Time) {
	id := uuid.New().String()
	token = id + "." + e.signature(id, clientID, expiryDate)
	expiry = e.now().Add(e.ttl)
	return token, expiry
}

// Validate runs the full validation chain against a record. The first
// failing check determines the reason. All checks must pass for a
// valid result.
func (e *Engine) Validate(token string, rec *client.Record) Result {
	if rec == nil {
		return Result{Reason: ReasonNotFound}
	}

	if rec.Token != token {
		return Result{Reason: ReasonMismatch}
	}

	// The store can hand back the sentinel as a literal token value;
	// check it explicitly even though the mismatch check usually
	// catches it first.
	if rec.Token == client.TokenUsed {
		return Result{Reason: ReasonAlreadyUsed}
	}

	id, sig, ok := split(token)
	if !ok {
		return Result{Reason: ReasonInvalidStructure}
	}

	expected := e.signature(id, rec.ClientID, rec.ExpiryDate)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return Result{Reason: ReasonInvalidSignature}
	}

	expiry := rec.TokenExpiryTime()
	if expiry.IsZero() || !e.now().Before(expiry) {
		return Result{Reason: ReasonExpired}
	}

	// Single-use enforcement, independent of the USED sentinel
	if rec.Responded() {
		return Result{Reason: ReasonAlreadyResponded}
	}

	return Result{Valid: true, Reason: ReasonValid}
}

// Inspect splits a token into its segments without validating it
// against a record. Used by the CLI.
func Inspect(token string) (id, sig string, ok bool) {
	return split(token)
}

// VerifySignature checks a token's signature against a claimed client
// identity. Used by the CLI; runtime validation goes through Validate.
func (e *Engine) VerifySignature(token, clientID, expiryDate string) bool {
	id, sig, ok := split(token)
	if !ok {
		return false
	}
	expected := e.signature(id, clientID, expiryDate)
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

func (e *Engine) signature(id, clientID, expiryDate string) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write([]byte(id))
	mac.Write([]byte(clientID))
	mac.Write([]byte(expiryDate))
	return hex.EncodeToString(mac.Sum(nil))[:e.sigLen]
}

func split(token string) (id, sig string, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
