package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/jefoffice/walletgate/keys"
)

type staticKey struct {
	key keys.Key
	err error
}

func (s staticKey) Key(context.Context) (keys.Key, error) { return s.key, s.err }

func testKey(seed byte) keys.Key {
	var k keys.Key
	for i := range k {
		k[i] = seed + byte(i)
	}
	return k
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestCodec(t *testing.T, src KeySource, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(src, Config{TTL: DefaultTTL, ClockSkew: DefaultClockSkew, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, staticKey{key: testKey(1)}, clock)

	token, err := c.Encode(context.Background(), Claims{
		EntityNumber:   " 4201 ",
		EmployeeNumber: "77",
		SessionNumber:  "s-1",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Count(token, ".") != 4 {
		t.Fatalf("expected a five-part compact JWE, got %d dots", strings.Count(token, "."))
	}

	got, err := c.Decode(context.Background(), token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got == nil {
		t.Fatalf("expected claims")
	}
	if got.EntityNumber != "4201" || got.EmployeeNumber != "77" || got.SessionNumber != "s-1" {
		t.Fatalf("unexpected claims %+v", got)
	}
	if !got.IssuedTime().Equal(clock.now) {
		t.Fatalf("iat = %v, want %v", got.IssuedTime(), clock.now)
	}
	if !got.ExpiresTime().Equal(clock.now.Add(DefaultTTL)) {
		t.Fatalf("exp = %v, want %v", got.ExpiresTime(), clock.now.Add(DefaultTTL))
	}
}

func TestCodecHeaderAndPayloadShape(t *testing.T) {
	key := testKey(9)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, staticKey{key: key}, clock)

	token, err := c.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	obj, err := jose.ParseEncryptedCompact(token, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if typ, _ := obj.Header.ExtraHeaders[jose.HeaderType].(string); typ != "JWT" {
		t.Fatalf("typ header = %q", typ)
	}
	plain, err := obj.Decrypt(key[:])
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(plain, &raw); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if _, ok := raw["session_number"]; ok {
		t.Fatalf("empty session_number must be omitted: %s", plain)
	}
	for _, field := range []string{"entity_number", "employee_number", "iat", "exp"} {
		if _, ok := raw[field]; !ok {
			t.Fatalf("payload missing %s: %s", field, plain)
		}
	}
}

func TestCodecEncodeRequiresIdentity(t *testing.T) {
	c := newTestCodec(t, staticKey{key: testKey(1)}, &fakeClock{now: time.Now()})

	for _, in := range []Claims{
		{EntityNumber: "", EmployeeNumber: "1"},
		{EntityNumber: "1", EmployeeNumber: "   "},
	} {
		if _, err := c.Encode(context.Background(), in); !errors.Is(err, ErrInvalidClaims) {
			t.Fatalf("expected ErrInvalidClaims for %+v, got %v", in, err)
		}
	}
}

func TestCodecGarbageDecodesToNil(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, staticKey{key: testKey(1)}, clock)
	other := newTestCodec(t, staticKey{key: testKey(2)}, clock)

	foreign, err := other.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	valid, err := c.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts := strings.Split(valid, ".")
	parts[3] = strings.Repeat("A", len(parts[3]))
	tampered := strings.Join(parts, ".")

	inputs := []string{
		"",
		"   ",
		"not-a-token",
		"a.b.c.d.e",
		"....",
		strings.Repeat("x", 4096),
		foreign,
		tampered,
		valid[:len(valid)-3],
	}
	for _, in := range inputs {
		got, err := c.Decode(context.Background(), in)
		if err != nil || got != nil {
			t.Fatalf("Decode(%.20q) = %+v, %v; want nil, nil", in, got, err)
		}
	}
}

func TestCodecExpiryHonoursClockSkew(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, staticKey{key: testKey(1)}, clock)

	token, err := c.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	issued := clock.now
	clock.now = issued.Add(DefaultTTL + DefaultClockSkew - time.Second)
	if got, _ := c.Decode(context.Background(), token); got == nil {
		t.Fatalf("token inside skew must still decode")
	}

	clock.now = issued.Add(DefaultTTL + DefaultClockSkew + time.Second)
	if got, err := c.Decode(context.Background(), token); got != nil || err != nil {
		t.Fatalf("expired token decoded to %+v, %v", got, err)
	}
}

func TestCodecRejectsFutureIssuedAt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, staticKey{key: testKey(1)}, clock)

	token, err := c.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	clock.now = clock.now.Add(-time.Hour)
	if got, _ := c.Decode(context.Background(), token); got != nil {
		t.Fatalf("token issued in the future must not decode")
	}
}

func TestCodecKeyErrorSurfaces(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	good := newTestCodec(t, staticKey{key: testKey(1)}, clock)
	token, err := good.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	broken := newTestCodec(t, staticKey{err: keys.ErrKeyUnavailable}, clock)
	if _, err := broken.Decode(context.Background(), token); !errors.Is(err, keys.ErrKeyUnavailable) {
		t.Fatalf("expected key error from Decode, got %v", err)
	}
	if _, err := broken.Encode(context.Background(), Claims{EntityNumber: "1", EmployeeNumber: "2"}); !errors.Is(err, keys.ErrKeyUnavailable) {
		t.Fatalf("expected key error from Encode, got %v", err)
	}

	if got, err := broken.Decode(context.Background(), "garbage"); got != nil || err != nil {
		t.Fatalf("garbage must not reach the key source: %+v, %v", got, err)
	}
}

func TestNewCodecValidatesConfig(t *testing.T) {
	src := staticKey{key: testKey(1)}
	cases := []Config{
		{TTL: 0},
		{TTL: time.Hour, ClockSkew: -time.Second},
		{TTL: time.Hour, ClockSkew: 3 * time.Minute},
	}
	for _, cfg := range cases {
		if _, err := NewCodec(src, cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
	if _, err := NewCodec(nil, Config{TTL: time.Hour}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil key source, got %v", err)
	}
}
