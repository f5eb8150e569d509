package goAuthClient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/classify"
)

// Config is the complete Client configuration. Build a Client with
// New().WithConfig(cfg).Build(); the Builder validates and clones it.
type Config struct {
	Transport TransportConfig
	Expiry    ExpiryConfig
	Refresh   RefreshConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig configures the default HTTP issuer.
type TransportConfig struct {
	// BaseURL is the API root every request path is resolved against.
	BaseURL string
	// RequestTimeout bounds each individual attempt. A timeout is an ordinary
	// failure and never triggers a refresh.
	RequestTimeout time.Duration
	UserAgent      string
	// RefreshPath is the renew-credential endpoint, called with POST and no body.
	RefreshPath string
	// LogoutPath is called by Client.Logout.
	LogoutPath string
}

/*
====================================
EXPIRY CONFIG
====================================
*/

// ExpiryConfig lists the failure signatures that mean "credential expired".
type ExpiryConfig struct {
	Signatures []classify.Signature
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds a single refresh. A refresh still running at the deadline
	// fails every caller waiting on it.
	Timeout time.Duration
	// OnSessionEnded runs once per failed refresh, after every waiter has been
	// released. Typical use: send the user back to the login screen.
	OnSessionEnded func(err error)
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events on a full buffer instead of waiting. Refresh
	// lifecycle events are always dropped on a full buffer.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRefreshTimeout = 10 * time.Second
	defaultRefreshPath    = "/auth/refresh-token"
	defaultLogoutPath     = "/auth/logout"
	defaultUserAgent      = "goAuthClient/1"
)

// DefaultConfig returns the recommended configuration. BaseURL must still be
// set.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
			RefreshPath:    defaultRefreshPath,
			LogoutPath:     defaultLogoutPath,
		},
		Expiry: ExpiryConfig{
			Signatures: classify.DefaultSignatures(),
		},
		Refresh: RefreshConfig{
			Timeout: defaultRefreshTimeout,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Expiry.Signatures != nil {
		out.Expiry.Signatures = append([]classify.Signature(nil), cfg.Expiry.Signatures...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem, if any.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(needBaseURL bool) error {
	if err := c.validateTransport(needBaseURL); err != nil {
		return err
	}

	if len(c.Expiry.Signatures) == 0 {
		return errors.New("Expiry Signatures must not be empty")
	}
	if _, err := classify.New(c.Expiry.Signatures...); err != nil {
		return fmt.Errorf("Expiry Signatures: %w", err)
	}

	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

// validateTransport checks the transport section. needBaseURL is false when a
// custom issuer replaces the HTTP issuer.
func (c *Config) validateTransport(needBaseURL bool) error {
	t := c.Transport
	if needBaseURL || t.BaseURL != "" {
		u, err := url.Parse(t.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("Transport BaseURL %q must be an absolute URL", t.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("Transport BaseURL scheme %q is not supported", u.Scheme)
		}
	}
	if t.RequestTimeout < 0 {
		return errors.New("Transport RequestTimeout must be >= 0")
	}
	if !strings.HasPrefix(t.RefreshPath, "/") {
		return errors.New("Transport RefreshPath must start with /")
	}
	if !strings.HasPrefix(t.LogoutPath, "/") {
		return errors.New("Transport LogoutPath must start with /")
	}
	return nil
}
