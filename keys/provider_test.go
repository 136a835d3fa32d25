package keys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	calls atomic.Int32
	delay time.Duration
	value string
	err   error
}

func (s *countingStore) GetSecret(ctx context.Context, _ string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.value, s.err
}

type countingObserver struct {
	started atomic.Int32
	failed  atomic.Int32
}

func (o *countingObserver) KeyFetchStarted()     { o.started.Add(1) }
func (o *countingObserver) KeyFetchFailed(error) { o.failed.Add(1) }

func randomSecret(t *testing.T) (Key, string) {
	t.Helper()
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return k, k.Encode()
}

func TestProviderConcurrentFirstUseFetchesOnce(t *testing.T) {
	want, secret := randomSecret(t)
	store := &countingStore{value: secret, delay: 50 * time.Millisecond}
	p := NewProvider(store, Config{SecretName: "/jef/session"})

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			got, err := p.Key(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("key mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if !p.Loaded() {
		t.Fatalf("expected key to be cached")
	}
}

func TestProviderErrorNotCached(t *testing.T) {
	_, secret := randomSecret(t)
	store := &countingStore{err: ErrSecretUnavailable}
	obs := &countingObserver{}
	p := NewProvider(store, Config{SecretName: "k", Observer: obs})

	if _, err := p.Key(context.Background()); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected ErrKeyUnavailable, got %v", err)
	}
	if !errors.Is(func() error { _, err := p.Key(context.Background()); return err }(), ErrSecretUnavailable) {
		t.Fatalf("expected wrapped store error")
	}

	store.err = nil
	store.value = secret
	if _, err := p.Key(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := store.calls.Load(); got != 3 {
		t.Fatalf("expected 3 fetches, got %d", got)
	}
	if obs.started.Load() != 3 || obs.failed.Load() != 2 {
		t.Fatalf("unexpected observer counts: started=%d failed=%d", obs.started.Load(), obs.failed.Load())
	}

	if _, err := p.Key(context.Background()); err != nil {
		t.Fatalf("cached key: %v", err)
	}
	if got := store.calls.Load(); got != 3 {
		t.Fatalf("expected cache hit, got %d fetches", got)
	}
}

func TestProviderConfigMissing(t *testing.T) {
	p := NewProvider(&countingStore{}, Config{SecretName: "   "})
	if _, err := p.Key(context.Background()); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestProviderEmptyValue(t *testing.T) {
	p := NewProvider(&countingStore{value: "  "}, Config{SecretName: "k"})
	if _, err := p.Key(context.Background()); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected ErrKeyUnavailable, got %v", err)
	}
}

func TestProviderInvalidLength(t *testing.T) {
	short := base64.RawURLEncoding.EncodeToString(make([]byte, 16))
	p := NewProvider(&countingStore{value: short}, Config{SecretName: "k"})

	_, err := p.Key(context.Background())
	if !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
	if got := err.Error(); got != "session key has invalid length: got 16 bytes, want 32" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestProviderCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	want, secret := randomSecret(t)
	store := &countingStore{value: secret, delay: 100 * time.Millisecond}
	p := NewProvider(store, Config{SecretName: "k"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Key(ctx); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected ErrKeyUnavailable for cancelled caller, got %v", err)
	}

	got, err := p.Key(context.Background())
	if err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if got != want {
		t.Fatalf("key mismatch")
	}
	if n := store.calls.Load(); n != 1 {
		t.Fatalf("expected the first fetch to be shared, got %d fetches", n)
	}
}

func TestProviderFetchTimeout(t *testing.T) {
	store := &countingStore{value: "x", delay: time.Second}
	p := NewProvider(store, Config{SecretName: "k", FetchTimeout: 20 * time.Millisecond})

	if _, err := p.Key(context.Background()); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected ErrKeyUnavailable, got %v", err)
	}
	if p.Loaded() {
		t.Fatalf("timed-out fetch must not be cached")
	}
}

func TestProviderReset(t *testing.T) {
	_, secret := randomSecret(t)
	store := &countingStore{value: secret}
	p := NewProvider(store, Config{SecretName: "k"})

	if _, err := p.Key(context.Background()); err != nil {
		t.Fatalf("Key: %v", err)
	}
	p.Reset()
	if p.Loaded() {
		t.Fatalf("expected empty cache after Reset")
	}
	if _, err := p.Key(context.Background()); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Fatalf("expected refetch after Reset, got %d", got)
	}
}

func TestParseKeyEncodings(t *testing.T) {
	var raw Key
	for i := range raw {
		raw[i] = byte(250 - i)
	}

	cases := map[string]string{
		"raw url": base64.RawURLEncoding.EncodeToString(raw[:]),
		"url":     base64.URLEncoding.EncodeToString(raw[:]),
		"std":     base64.StdEncoding.EncodeToString(raw[:]),
		"raw std": base64.RawStdEncoding.EncodeToString(raw[:]),
		"spaces":  "  " + base64.StdEncoding.EncodeToString(raw[:]) + "\n",
	}
	for name, value := range cases {
		got, err := ParseKey(value)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != raw {
			t.Fatalf("%s: decoded key mismatch", name)
		}
	}

	if _, err := ParseKey("!!!not base64!!!"); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestKeyNeverFormatsBytes(t *testing.T) {
	var k Key
	k[0] = 0xAB
	if k.String() != "[redacted]" {
		t.Fatalf("unexpected String %q", k.String())
	}
}
