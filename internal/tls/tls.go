// Package tls provides the certificate plumbing for the public
// response endpoint: either a manual PEM pair or automatic
// Let's Encrypt certificates via ACME.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme/autocert"

	"github.com/foxzi/renewly/internal/config"
)

// LoadCertificate builds a TLS config from a PEM certificate/key pair
func LoadCertificate(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ACMEManager obtains and renews certificates from Let's Encrypt
type ACMEManager struct {
	manager *autocert.Manager
	domains []string
}

// NewACMEManager creates an ACME manager with a directory cache
func NewACMEManager(cfg config.ACMEConfig) *ACMEManager {
	return &ACMEManager{
		manager: &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Email:      cfg.Email,
			HostPolicy: autocert.HostWhitelist(cfg.Domains...),
			Cache:      autocert.DirCache(cfg.CacheDir),
		},
		domains: cfg.Domains,
	}
}

// Domains returns the domains this manager serves
func (a *ACMEManager) Domains() []string {
	return a.domains
}

// TLSConfig returns a server TLS config backed by the ACME manager
func (a *ACMEManager) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: a.manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// HTTPHandler wraps fallback with the HTTP-01 challenge handler. It
// must be reachable on port 80 of every configured domain.
func (a *ACMEManager) HTTPHandler(fallback http.Handler) http.Handler {
	return a.manager.HTTPHandler(fallback)
}

// Warm obtains certificates for every configured domain so the first
// reminder link click does not pay the issuance round trip. The
// challenge server must already be listening.
func (a *ACMEManager) Warm(ctx context.Context) error {
	for _, domain := range a.domains {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hello := &tls.ClientHelloInfo{ServerName: domain}
		if _, err := a.manager.GetCertificate(hello); err != nil {
			return fmt.Errorf("failed to obtain certificate for %s: %w", domain, err)
		}
	}
	return nil
}
