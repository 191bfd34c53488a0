// Package mailer renders and delivers reminder emails through a
// configured SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/foxzi/renewly/internal/client"
	"github.com/foxzi/renewly/internal/config"
	"github.com/foxzi/renewly/internal/dkim"
)

// Mailer sends reminder emails via SMTP submission
type Mailer struct {
	cfg         config.SMTPConfig
	baseURL     string
	companyName string
	helloName   string
	signer      *dkim.Signer
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a mailer. signer may be nil to send unsigned mail.
func New(cfg config.SMTPConfig, baseURL, companyName string, signer *dkim.Signer, logger *slog.Logger) *Mailer {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	return &Mailer{
		cfg:         cfg,
		baseURL:     baseURL,
		companyName: companyName,
		helloName:   hostname,
		signer:      signer,
		logger:      logger,
		now:         time.Now,
	}
}

// SendReminder renders and sends the renewal reminder for a record.
// The link embeds the freshly minted token.
func (m *Mailer) SendReminder(ctx context.Context, rec *client.Record, token string, tokenExpiry time.Time) error {
	link := fmt.Sprintf("%s/response/%s", m.baseURL, token)

	subject, html, text, err := renderReminder(reminderData{
		Name:        rec.Name,
		CompanyName: m.companyName,
		ExpiryDate:  client.FormatHumanDate(rec.ExpiryDate),
		LinkExpiry:  tokenExpiry.Format("January 2, 2006"),
		Link:        link,
	})
	if err != nil {
		return err
	}

	data := buildMessage(m.cfg.From, rec.Email, subject, html, text, m.now())

	if m.signer != nil {
		signed, err := m.signer.Sign(data)
		if err != nil {
			m.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", m.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	if err := m.submit(ctx, rec.Email, data); err != nil {
		return err
	}

	m.logger.Info("reminder sent", "to", rec.Email, "client_id", rec.ClientID)
	return nil
}

// submit delivers the message to the configured relay
func (m *Mailer) submit(ctx context.Context, to string, data []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connection failed to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(m.now().Add(m.cfg.Timeout))
	}

	var c *smtp.Client
	if m.cfg.StartTLS {
		c, err = smtp.NewClientStartTLS(conn, &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
		if err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	} else {
		c = smtp.NewClient(conn)
	}
	defer c.Close()

	if err := c.Hello(m.helloName); err != nil {
		return fmt.Errorf("HELO failed: %w", err)
	}

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.SendMail(m.cfg.From, []string{to}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	return c.Quit()
}
