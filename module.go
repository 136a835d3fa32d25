package walletgate

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jefoffice/walletgate/keys"
)

// moduleResolver yields the module id checked on module-gated paths. A
// configured value of digits is used as is; anything else is a secret-store
// name whose value holds the id. Only successful lookups are cached.
type moduleResolver struct {
	configured string
	store      keys.SecretStore
	timeout    time.Duration

	cached atomic.Pointer[string]
	group  singleflight.Group
}

func newModuleResolver(configured string, store keys.SecretStore, timeout time.Duration) *moduleResolver {
	configured = strings.TrimSpace(configured)
	m := &moduleResolver{configured: configured, store: store, timeout: timeout}
	if isModuleNumber(configured) {
		m.cached.Store(&configured)
	}
	return m
}

func (m *moduleResolver) Resolve(ctx context.Context) (string, error) {
	if v := m.cached.Load(); v != nil {
		return *v, nil
	}
	if m.configured == "" {
		return "", ErrModuleNotConfigured
	}
	if m.store == nil {
		return "", fmt.Errorf("%w: %q is not a module number", ErrModuleNotConfigured, m.configured)
	}

	ch := m.group.DoChan(m.configured, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		value, err := m.store.GetSecret(lookupCtx, m.configured)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrModuleNotConfigured, err)
		}
		value = strings.TrimSpace(value)
		if !isModuleNumber(value) {
			return "", fmt.Errorf("%w: resolved value is not a module number", ErrModuleNotConfigured)
		}
		m.cached.Store(&value)
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrModuleNotConfigured, ctx.Err())
	}
}

func isModuleNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
