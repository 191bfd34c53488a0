package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	DKIM     DKIMConfig     `yaml:"dkim"`
	TLS      TLSConfig      `yaml:"tls"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Reminder ReminderConfig `yaml:"reminder"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	BaseURL      string        `yaml:"base_url"`     // Public URL prefix used in reminder links
	Environment  string        `yaml:"environment"`  // development or production
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig contains client store settings
type StoreConfig struct {
	Driver string `yaml:"driver"` // bolt or sqlite
	Path   string `yaml:"path"`
}

// SMTPConfig contains outgoing mail relay settings
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
	StartTLS bool          `yaml:"starttls"`
}

// DKIMConfig contains DKIM signing settings for outgoing reminders
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

// TLSConfig contains TLS settings for the public response endpoint
type TLSConfig struct {
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// ACMEConfig contains Let's Encrypt ACME settings
type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

// ScheduleConfig contains pipeline scheduling settings
type ScheduleConfig struct {
	At string `yaml:"at"` // Daily run time, "HH:MM" local

	// AllowOverlappingRuns disables the run-level mutex, letting a
	// manual trigger overlap a scheduled run. Only for compatibility
	// testing; overlapping runs can double-send.
	AllowOverlappingRuns bool `yaml:"allow_overlapping_runs"`
}

// ReminderConfig contains reminder policy settings
type ReminderConfig struct {
	// DaysBefore is the lead time before expiry (default: 5). A
	// pointer so an explicit 0 (remind on the expiry day itself) is
	// distinguishable from an absent key.
	DaysBefore      *int   `yaml:"days_before"`
	TokenExpiryDays int    `yaml:"token_expiry_days"` // Token lifetime (default: 7)
	SignatureLength int    `yaml:"signature_length"`  // Truncated HMAC hex length (default: 16)
	CompanyName     string `yaml:"company_name"`
}

// SecurityConfig contains secrets
type SecurityConfig struct {
	SecretKey string `yaml:"secret_key"` // Required, signs reminder tokens
	APIKey    string `yaml:"api_key"`    // Protects admin endpoints (empty = open)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Default: /metrics
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "bolt"
	}
	if c.Store.Path == "" {
		c.Store.Path = "/var/lib/renewly/clients.db"
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}

	if c.TLS.ACME.CacheDir == "" {
		c.TLS.ACME.CacheDir = "/var/lib/renewly/certs"
	}

	if c.Schedule.At == "" {
		c.Schedule.At = "09:00"
	}

	if c.Reminder.DaysBefore == nil {
		days := 5
		c.Reminder.DaysBefore = &days
	}
	if c.Reminder.TokenExpiryDays == 0 {
		c.Reminder.TokenExpiryDays = 7
	}
	if c.Reminder.SignatureLength == 0 {
		c.Reminder.SignatureLength = 16
	}
	if c.Reminder.CompanyName == "" {
		c.Reminder.CompanyName = "Your Company"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Security.SecretKey == "" {
		return fmt.Errorf("security.secret_key is required")
	}

	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("invalid server.environment: %s (must be development or production)", c.Server.Environment)
	}

	if c.Store.Driver != "bolt" && c.Store.Driver != "sqlite" {
		return fmt.Errorf("invalid store.driver: %s (must be bolt or sqlite)", c.Store.Driver)
	}

	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}

	if err := validateRunTime(c.Schedule.At); err != nil {
		return fmt.Errorf("invalid schedule.at: %w", err)
	}

	if c.Reminder.DaysBefore != nil && *c.Reminder.DaysBefore < 0 {
		return fmt.Errorf("reminder.days_before must not be negative")
	}
	if c.Reminder.TokenExpiryDays < 1 {
		return fmt.Errorf("reminder.token_expiry_days must be at least 1")
	}
	if c.Reminder.SignatureLength < 8 || c.Reminder.SignatureLength > 64 {
		return fmt.Errorf("reminder.signature_length must be between 8 and 64")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.validateTLS(); err != nil {
		return err
	}

	if err := c.validateDKIM(); err != nil {
		return err
	}

	return nil
}

// validateTLS validates TLS configuration
func (c *Config) validateTLS() error {
	hasCerts := c.TLS.CertFile != "" || c.TLS.KeyFile != ""
	hasACME := c.TLS.ACME.Enabled

	if hasCerts && hasACME {
		return fmt.Errorf("cannot use both manual certificates and ACME")
	}

	if hasCerts {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls requires both cert_file and key_file")
		}
	}

	if hasACME {
		if c.TLS.ACME.Email == "" {
			return fmt.Errorf("tls.acme.email is required when ACME is enabled")
		}
		if len(c.TLS.ACME.Domains) == 0 {
			return fmt.Errorf("tls.acme.domains must not be empty when ACME is enabled")
		}
	}

	return nil
}

// validateDKIM validates DKIM configuration
func (c *Config) validateDKIM() error {
	if !c.DKIM.Enabled {
		return nil
	}

	if c.DKIM.Domain == "" {
		return fmt.Errorf("dkim.domain is required when DKIM is enabled")
	}
	if c.DKIM.Selector == "" {
		return fmt.Errorf("dkim.selector is required when DKIM is enabled")
	}
	if c.DKIM.KeyFile == "" {
		return fmt.Errorf("dkim.key_file is required when DKIM is enabled")
	}

	return nil
}

// HasTLS returns true if TLS is configured for the public endpoint
func (c *Config) HasTLS() bool {
	return (c.TLS.CertFile != "" && c.TLS.KeyFile != "") || c.TLS.ACME.Enabled
}

// LeadDays returns the reminder lead time in days, applying the
// default when the key was never set.
func (c *Config) LeadDays() int {
	if c.Reminder.DaysBefore == nil {
		return 5
	}
	return *c.Reminder.DaysBefore
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// RunTime returns the daily run time as hour and minute
func (c *Config) RunTime() (hour, minute int) {
	hour, minute, _ = parseRunTime(c.Schedule.At)
	return hour, minute
}

func validateRunTime(s string) error {
	_, _, err := parseRunTime(s)
	return err
}

func parseRunTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not in HH:MM form", s)
	}
	return t.Hour(), t.Minute(), nil
}
