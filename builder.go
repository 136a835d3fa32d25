package walletgate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jefoffice/walletgate/internal/audit"
	"github.com/jefoffice/walletgate/internal/rate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/policy"
	"github.com/jefoffice/walletgate/session"
)

// Builder assembles a Gateway. A Builder is single use.
type Builder struct {
	config Config

	store     keys.SecretStore
	keySource session.KeySource
	validator policy.Validator
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecretStore sets the store holding the session key and, when the
// module number is a parameter path, the module number.
func (b *Builder) WithSecretStore(store keys.SecretStore) *Builder {
	b.store = store
	return b
}

// WithKeySource bypasses the secret store for the session key.
func (b *Builder) WithKeySource(src session.KeySource) *Builder {
	b.keySource = src
	return b
}

// WithPolicyValidator sets the module entitlement check.
func (b *Builder) WithPolicyValidator(v policy.Validator) *Builder {
	b.validator = v
	return b
}

// WithRedis supplies the client used by the redis rate-limit strategy.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the gateway logger. Build falls back to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token stamping, expiry checks and the
// fixed-window limiter. Latency metrics always use the wall clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the gateway.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.validator == nil {
		return nil, errors.New("policy validator required")
	}
	if b.store == nil && b.keySource == nil {
		return nil, errors.New("secret store or key source required")
	}
	if rate.Strategy(cfg.RateLimit.Strategy) == rate.StrategyRedis && b.redis == nil {
		return nil, errors.New("redis rate limit strategy requires a redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	login, err := url.Parse(cfg.Routes.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	routes, err := newRouteTable(cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	metrics := NewMetrics(cfg.Metrics)

	gw := &Gateway{
		config:    cfg,
		validator: b.validator,
		routes:    routes,
		loginURL:  login,
		metrics:   metrics,
		logger:    logger,
		now:       now,
	}

	// -------- SESSION KEY --------
	src := b.keySource
	if src == nil {
		gw.keys = keys.NewProvider(b.store, keys.Config{
			SecretName:   cfg.Key.SecretName,
			FetchTimeout: cfg.Key.FetchTimeout,
			Observer:     keyObserver{metrics: metrics},
		})
		src = gw.keys
	}

	codec, err := session.NewCodec(src, session.Config{
		TTL:       cfg.Session.TTL,
		ClockSkew: cfg.Session.ClockSkew,
		Now:       now,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	gw.codec = codec

	// -------- RATE LIMITER --------
	limiter, err := rate.New(rate.Config{
		Strategy:     rate.Strategy(cfg.RateLimit.Strategy),
		Points:       cfg.RateLimit.Points,
		Window:       cfg.RateLimit.Window,
		Prefix:       cfg.RateLimit.RedisPrefix,
		RedisTimeout: cfg.RateLimit.RedisTimeout,
		Now:          now,
		OnFallback: func(err error) {
			metrics.Inc(MetricLimiterFallback)
			logger.Warn("rate limiter redis fallback", slog.String("error", err.Error()))
		},
	}, b.redis, func(rec any) {
		logger.Error("rate limiter panic recovered", slog.Any("panic", rec))
	})
	if err != nil {
		return nil, err
	}
	gw.limiter = limiter

	// -------- MODULE + AUDIT --------
	gw.module = newModuleResolver(cfg.Policy.ModuleNumber, b.store, cfg.Key.FetchTimeout)
	gw.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return gw, nil
}
