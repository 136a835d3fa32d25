package walletgate

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "clock skew at limit",
			mutate:    func(c *Config) { c.Session.ClockSkew = 2 * time.Minute },
			wantValid: true,
		},
		{
			name:      "clock skew above limit",
			mutate:    func(c *Config) { c.Session.ClockSkew = 3 * time.Minute },
			wantValid: false,
		},
		{
			name:      "zero ttl",
			mutate:    func(c *Config) { c.Session.TTL = 0 },
			wantValid: false,
		},
		{
			name:      "zero key fetch timeout",
			mutate:    func(c *Config) { c.Key.FetchTimeout = 0 },
			wantValid: false,
		},
		{
			name:      "env key source",
			mutate:    func(c *Config) { c.Key.Source = "env" },
			wantValid: true,
		},
		{
			name:      "unknown key source",
			mutate:    func(c *Config) { c.Key.Source = "vault" },
			wantValid: false,
		},
		{
			name:      "blank cookie name",
			mutate:    func(c *Config) { c.Cookie.Name = "  " },
			wantValid: false,
		},
		{
			name:      "cookie name with separator",
			mutate:    func(c *Config) { c.Cookie.Name = "a;b" },
			wantValid: false,
		},
		{
			name:      "token bucket strategy",
			mutate:    func(c *Config) { c.RateLimit.Strategy = "token_bucket" },
			wantValid: true,
		},
		{
			name:      "redis strategy without addr",
			mutate:    func(c *Config) { c.RateLimit.Strategy = "redis" },
			wantValid: false,
		},
		{
			name: "redis strategy with addr",
			mutate: func(c *Config) {
				c.RateLimit.Strategy = "redis"
				c.Redis.Addr = "localhost:6379"
			},
			wantValid: true,
		},
		{
			name:      "unknown strategy",
			mutate:    func(c *Config) { c.RateLimit.Strategy = "sliding" },
			wantValid: false,
		},
		{
			name:      "zero points",
			mutate:    func(c *Config) { c.RateLimit.Points = 0 },
			wantValid: false,
		},
		{
			name: "window shorter than points",
			mutate: func(c *Config) {
				c.RateLimit.Points = 10
				c.RateLimit.Window = 5 * time.Nanosecond
			},
			wantValid: false,
		},
		{
			name:      "zero policy timeout",
			mutate:    func(c *Config) { c.Policy.Timeout = 0 },
			wantValid: false,
		},
		{
			name:      "relative login url",
			mutate:    func(c *Config) { c.Routes.LoginURL = "/login" },
			wantValid: false,
		},
		{
			name:      "access denied path without slash",
			mutate:    func(c *Config) { c.Routes.AccessDeniedPath = "denied" },
			wantValid: false,
		},
		{
			name:      "bad always allowed pattern",
			mutate:    func(c *Config) { c.Routes.AlwaysAllowed = []string{"/a/*/b"} },
			wantValid: false,
		},
		{
			name:      "bad session only pattern",
			mutate:    func(c *Config) { c.Routes.SessionOnly = []string{"api"} },
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "dev login without dev mode",
			mutate:    func(c *Config) { c.DevLogin = true },
			wantValid: false,
		},
		{
			name: "dev login with dev mode",
			mutate: func(c *Config) {
				c.DevMode = true
				c.DevLogin = true
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestCloneConfigDetachesSlices(t *testing.T) {
	cfg := DefaultConfig()
	clone := cloneConfig(cfg)
	clone.Routes.AlwaysAllowed[0] = "/changed"
	clone.Routes.SessionOnly[0] = "/changed"

	if cfg.Routes.AlwaysAllowed[0] == "/changed" || cfg.Routes.SessionOnly[0] == "/changed" {
		t.Fatal("clone shares route slices with the original")
	}
}
