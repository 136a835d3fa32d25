package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jefoffice/walletgate/keys"
)

const (
	// DefaultTTL is the lifetime stamped into new tokens.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultClockSkew is the tolerance applied to exp and iat checks.
	DefaultClockSkew = 10 * time.Second

	maxClockSkew = 2 * time.Minute
)

// KeySource supplies the content-encryption key. *keys.Provider implements it.
type KeySource interface {
	Key(ctx context.Context) (keys.Key, error)
}

// Config controls a Codec.
type Config struct {
	TTL       time.Duration
	ClockSkew time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Codec encrypts and decrypts session tokens.
type Codec struct {
	keys   KeySource
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	validator *jwt.Validator
}

// NewCodec validates cfg and returns a Codec using src for keys.
func NewCodec(src KeySource, cfg Config) (*Codec, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: key source required", ErrInvalidConfig)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: TTL must be > 0", ErrInvalidConfig)
	}
	if cfg.ClockSkew < 0 || cfg.ClockSkew > maxClockSkew {
		return nil, fmt.Errorf("%w: clock skew must be within [0, %s]", ErrInvalidConfig, maxClockSkew)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Codec{
		keys:   src,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: cfg.Logger,
		validator: jwt.NewValidator(
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode seals in into a token. Only the identity fields are copied; iat and
// exp are stamped from the codec clock.
func (c *Codec) Encode(ctx context.Context, in Claims) (string, error) {
	token, _, err := c.Issue(ctx, in)
	return token, err
}

// Issue is Encode that also returns the claims actually sealed.
func (c *Codec) Issue(ctx context.Context, in Claims) (string, *Claims, error) {
	claims := &Claims{
		EntityNumber:   strings.TrimSpace(in.EntityNumber),
		EmployeeNumber: strings.TrimSpace(in.EmployeeNumber),
		SessionNumber:  strings.TrimSpace(in.SessionNumber),
	}
	if !claims.Complete() {
		return "", nil, ErrInvalidClaims
	}

	key, err := c.keys.Key(ctx)
	if err != nil {
		return "", nil, err
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", nil, err
	}

	enc, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key[:]},
		(&jose.EncrypterOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", nil, err
	}
	obj, err := enc.Encrypt(payload)
	if err != nil {
		return "", nil, err
	}
	token, err := obj.CompactSerialize()
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Decode opens token. It returns (nil, nil) for anything that is not a
// current, authentic, complete session, and a non-nil error only when the
// key source fails.
func (c *Codec) Decode(ctx context.Context, token string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.reject("panic")
			claims, err = nil, nil
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	obj, perr := jose.ParseEncryptedCompact(
		token,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if perr != nil {
		c.reject("malformed")
		return nil, nil
	}

	key, err := c.keys.Key(ctx)
	if err != nil {
		return nil, err
	}

	plain, derr := obj.Decrypt(key[:])
	if derr != nil {
		c.reject("decrypt")
		return nil, nil
	}

	var out Claims
	if err := json.Unmarshal(plain, &out); err != nil {
		c.reject("payload")
		return nil, nil
	}
	if err := c.validator.Validate(out); err != nil {
		c.reject("expired")
		return nil, nil
	}
	if !out.Complete() {
		c.reject("incomplete")
		return nil, nil
	}
	return &out, nil
}

func (c *Codec) reject(reason string) {
	c.logger.Debug("session token rejected", slog.String("reason", reason))
}
