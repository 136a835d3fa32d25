package walletgate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jefoffice/walletgate/internal/rate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/session"
)

// Config is the complete gateway configuration. Obtain one from
// DefaultConfig or LoadConfig, adjust, then pass it to Builder.WithConfig.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Key       KeyConfig       `yaml:"key"`
	Cookie    CookieConfig    `yaml:"cookie"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Policy    PolicyConfig    `yaml:"policy"`
	Routes    RouteConfig     `yaml:"routes"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Audit     AuditConfig     `yaml:"audit"`

	// DevMode relaxes cookie attributes for plain-HTTP local development.
	DevMode bool `yaml:"dev_mode"`
	// DevLogin enables the local session issuing endpoint. Requires DevMode.
	DevLogin bool `yaml:"dev_login"`
}

// SessionConfig controls token lifetime.
type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// KeyConfig names the session key secret.
type KeyConfig struct {
	SecretName   string        `yaml:"secret_name"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// Source selects the secret store: "ssm", "env" or "static".
	Source string `yaml:"source"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
}

// RateLimitConfig controls the per-client limiter.
type RateLimitConfig struct {
	// Strategy is fixed_window, token_bucket or redis.
	Strategy     string        `yaml:"strategy"`
	Points       int           `yaml:"points"`
	Window       time.Duration `yaml:"window"`
	RedisPrefix  string        `yaml:"redis_prefix"`
	RedisTimeout time.Duration `yaml:"redis_timeout"`
}

// PolicyConfig controls module authorization.
type PolicyConfig struct {
	// ModuleNumber is the module id, or a secret-store path holding it.
	ModuleNumber string `yaml:"module_number"`
	// FunctionName is the policy Lambda name or ARN.
	FunctionName string        `yaml:"function_name"`
	Region       string        `yaml:"region"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RouteConfig controls path classification and redirect targets.
type RouteConfig struct {
	LoginURL         string `yaml:"login_url"`
	AccessDeniedPath string `yaml:"access_denied_path"`
	APIPrefix        string `yaml:"api_prefix"`
	// AlwaysAllowed patterns skip every check. See Classify for syntax.
	AlwaysAllowed []string `yaml:"always_allowed"`
	// SessionOnly patterns require a session but no module check.
	SessionOnly []string `yaml:"session_only"`
	// TrustForwardedHeaders builds redirect URLs from X-Forwarded-Proto and
	// X-Forwarded-Host. Enable it only behind a proxy that sets both.
	TrustForwardedHeaders bool `yaml:"trust_forwarded_headers"`
}

// RedisConfig addresses the shared limiter backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"latency_histograms"`
}

// AuditConfig controls the asynchronous decision log.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BufferSize int    `yaml:"buffer_size"`
	DropIfFull bool   `yaml:"drop_if_full"`
	File       string `yaml:"file"`
}

const (
	DefaultLoginURL         = "https://login.jefoffice.com/"
	DefaultAccessDeniedPath = "/shared/access-denied"
	DefaultAPIPrefix        = "/api/"
	DefaultPolicyTimeout    = 3 * time.Second
	DefaultRegion           = "ap-southeast-1"
	DefaultPolicyFunction   = "jef-iam-validate-entity-number-and-module-number"
)

// Session endpoints served by the handlers package.
const (
	SessionValidatePath  = "/api/shared/session/validate"
	SessionReadPath      = "/api/shared/session/read"
	SessionDeleteOnePath = "/api/shared/session/delete-one"
	SessionDevLoginPath  = "/api/shared/session/dev-login"
)

// DefaultAlwaysAllowed lists the paths that bypass the gate. Suffix patterns
// apply to root-level files outside the API prefix.
var DefaultAlwaysAllowed = []string{
	SessionValidatePath,
	SessionReadPath,
	SessionDeleteOnePath,
	SessionDevLoginPath,
	"/_next/static/*",
	"/_next/image/*",
	"/static/*",
	"/favicon.ico",
	"/robots.txt",
	"*.png",
	"*.svg",
	"*.ico",
	"*.css",
	"*.js",
	"*.woff2",
	"/healthz",
	"/metrics",
}

// DefaultSessionOnly lists shared API paths that need a session but no module.
var DefaultSessionOnly = []string{
	"/api/shared/*",
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:       session.DefaultTTL,
			ClockSkew: session.DefaultClockSkew,
		},
		Key: KeyConfig{
			FetchTimeout: keys.DefaultFetchTimeout,
			Source:       "ssm",
		},
		Cookie: CookieConfig{
			Name: session.DefaultCookieName,
		},
		RateLimit: RateLimitConfig{
			Strategy:     string(rate.StrategyFixedWindow),
			Points:       rate.DefaultPoints,
			Window:       rate.DefaultWindow,
			RedisPrefix:  "wg:rl:",
			RedisTimeout: 250 * time.Millisecond,
		},
		Policy: PolicyConfig{
			FunctionName: DefaultPolicyFunction,
			Region:       DefaultRegion,
			Timeout:      DefaultPolicyTimeout,
		},
		Routes: RouteConfig{
			LoginURL:         DefaultLoginURL,
			AccessDeniedPath: DefaultAccessDeniedPath,
			APIPrefix:        DefaultAPIPrefix,
			AlwaysAllowed:    append([]string(nil), DefaultAlwaysAllowed...),
			SessionOnly:      append([]string(nil), DefaultSessionOnly...),
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Routes.AlwaysAllowed = append([]string(nil), cfg.Routes.AlwaysAllowed...)
	out.Routes.SessionOnly = append([]string(nil), cfg.Routes.SessionOnly...)
	return out
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.ClockSkew < 0 || c.Session.ClockSkew > 2*time.Minute {
		return errors.New("Session ClockSkew must be within [0, 2m]")
	}

	// Key
	if c.Key.FetchTimeout <= 0 {
		return errors.New("Key FetchTimeout must be > 0")
	}
	switch c.Key.Source {
	case "ssm", "env", "static":
	default:
		return errors.New("Key Source must be 'ssm', 'env' or 'static'")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name is required")
	}
	if strings.ContainsAny(c.Cookie.Name, " ;,=") {
		return errors.New("Cookie Name contains invalid characters")
	}

	// Rate limit
	switch rate.Strategy(c.RateLimit.Strategy) {
	case rate.StrategyFixedWindow, rate.StrategyTokenBucket:
	case rate.StrategyRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("RateLimit Strategy 'redis' requires Redis Addr")
		}
	default:
		return fmt.Errorf("RateLimit Strategy %q is not supported", c.RateLimit.Strategy)
	}
	if c.RateLimit.Points <= 0 {
		return errors.New("RateLimit Points must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.Window/time.Duration(c.RateLimit.Points) <= 0 {
		return errors.New("RateLimit Window is too short for Points")
	}

	// Policy
	if c.Policy.Timeout <= 0 {
		return errors.New("Policy Timeout must be > 0")
	}

	// Routes
	login, err := url.Parse(c.Routes.LoginURL)
	if err != nil || login.Scheme == "" || login.Host == "" {
		return errors.New("Routes LoginURL must be an absolute URL")
	}
	if !strings.HasPrefix(c.Routes.AccessDeniedPath, "/") {
		return errors.New("Routes AccessDeniedPath must start with '/'")
	}
	if !strings.HasPrefix(c.Routes.APIPrefix, "/") {
		return errors.New("Routes APIPrefix must start with '/'")
	}
	for _, p := range append(append([]string(nil), c.Routes.AlwaysAllowed...), c.Routes.SessionOnly...) {
		if err := validatePattern(p); err != nil {
			return err
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.DevLogin && !c.DevMode {
		return errors.New("DevLogin requires DevMode")
	}
	return nil
}
