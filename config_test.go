package goAuthClient

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/classify"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Transport.BaseURL = "http://api.example.test"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with base url", mutate: func(*Config) {}, wantValid: true},
		{name: "missing base url", mutate: func(c *Config) { c.Transport.BaseURL = "" }, wantValid: false},
		{name: "relative base url", mutate: func(c *Config) { c.Transport.BaseURL = "/api" }, wantValid: false},
		{name: "ftp base url", mutate: func(c *Config) { c.Transport.BaseURL = "ftp://x" }, wantValid: false},
		{name: "https base url with path", mutate: func(c *Config) { c.Transport.BaseURL = "https://x/api/v1" }, wantValid: true},
		{name: "negative request timeout", mutate: func(c *Config) { c.Transport.RequestTimeout = -time.Second }, wantValid: false},
		{name: "zero request timeout uses issuer default", mutate: func(c *Config) { c.Transport.RequestTimeout = 0 }, wantValid: true},
		{name: "refresh path without slash", mutate: func(c *Config) { c.Transport.RefreshPath = "auth/refresh" }, wantValid: false},
		{name: "logout path without slash", mutate: func(c *Config) { c.Transport.LogoutPath = "" }, wantValid: false},
		{name: "no signatures", mutate: func(c *Config) { c.Expiry.Signatures = nil }, wantValid: false},
		{
			name:      "5xx signature",
			mutate:    func(c *Config) { c.Expiry.Signatures = []classify.Signature{{Status: 503, Message: "jwt expired"}} },
			wantValid: false,
		},
		{
			name:      "custom 401 signature",
			mutate:    func(c *Config) { c.Expiry.Signatures = []classify.Signature{{Status: 401, Message: "token expired"}} },
			wantValid: true,
		},
		{name: "zero refresh timeout", mutate: func(c *Config) { c.Refresh.Timeout = 0 }, wantValid: false},
		{
			name:      "audit enabled without buffer",
			mutate:    func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
			wantValid: false,
		},
		{
			name:      "latency without metrics",
			mutate:    func(c *Config) { c.Metrics.Enabled = false; c.Metrics.EnableLatencyHistograms = true },
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCloneConfigCopiesSignatures(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)
	clone.Expiry.Signatures[0].Message = "mutated"

	if cfg.Expiry.Signatures[0].Message != "jwt expired" {
		t.Fatal("cloneConfig must not share the signature slice")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(validConfig())
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer c.Close()

	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "already used") {
		t.Fatalf("expected builder reuse error, got %v", err)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected missing BaseURL to fail Build")
	}
}
