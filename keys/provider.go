package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single secret-store round trip.
const DefaultFetchTimeout = 5 * time.Second

// Observer receives fetch lifecycle notifications. Implementations must be
// cheap and must not block.
type Observer interface {
	KeyFetchStarted()
	KeyFetchFailed(err error)
}

// Config controls a Provider.
type Config struct {
	// SecretName is the secret-store name of the base64 key.
	SecretName string
	// FetchTimeout bounds the shared fetch. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	Observer     Observer
}

// Provider lazily fetches and caches the session key.
//
// Provider is safe for concurrent use.
type Provider struct {
	store  SecretStore
	config Config

	cached atomic.Pointer[Key]
	group  singleflight.Group
}

// NewProvider returns a Provider reading from store.
func NewProvider(store SecretStore, cfg Config) *Provider {
	cfg.SecretName = strings.TrimSpace(cfg.SecretName)
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Provider{store: store, config: cfg}
}

// Key returns the cached key, fetching it on first use.
//
// A caller whose ctx ends while a fetch is in flight stops waiting and
// receives ErrKeyUnavailable; the fetch itself continues for other waiters
// and populates the cache on success.
func (p *Provider) Key(ctx context.Context) (Key, error) {
	if k := p.cached.Load(); k != nil {
		return *k, nil
	}
	if p.config.SecretName == "" {
		return Key{}, ErrConfigMissing
	}
	if p.store == nil {
		return Key{}, fmt.Errorf("%w: no secret store", ErrKeyUnavailable)
	}

	ch := p.group.DoChan(p.config.SecretName, func() (any, error) {
		if k := p.cached.Load(); k != nil {
			return *k, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.FetchTimeout)
		defer cancel()

		k, err := p.fetch(fetchCtx)
		if err != nil {
			if p.config.Observer != nil {
				p.config.Observer.KeyFetchFailed(err)
			}
			return Key{}, err
		}
		p.cached.Store(&k)
		return k, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Key{}, res.Err
		}
		return res.Val.(Key), nil
	case <-ctx.Done():
		return Key{}, fmt.Errorf("%w: %v", ErrKeyUnavailable, ctx.Err())
	}
}

func (p *Provider) fetch(ctx context.Context) (Key, error) {
	if p.config.Observer != nil {
		p.config.Observer.KeyFetchStarted()
	}

	value, err := p.store.GetSecret(ctx, p.config.SecretName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Key{}, fmt.Errorf("%w: fetch timed out after %s", ErrKeyUnavailable, p.config.FetchTimeout)
		}
		return Key{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return ParseKey(value)
}

// Loaded reports whether a key is cached.
func (p *Provider) Loaded() bool {
	return p.cached.Load() != nil
}

// Reset drops the cached key so the next Key call fetches again.
func (p *Provider) Reset() {
	p.cached.Store(nil)
}
