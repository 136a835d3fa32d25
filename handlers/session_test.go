package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/policy"
	"github.com/jefoffice/walletgate/session"
)

type fixedKey keys.Key

func (k fixedKey) Key(context.Context) (keys.Key, error) { return keys.Key(k), nil }

type clock struct{ ns atomic.Int64 }

func (c *clock) Now() time.Time          { return time.Unix(0, c.ns.Load()).UTC() }
func (c *clock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

type fixture struct {
	gw     *walletgate.Gateway
	router *mux.Router
	clock  *clock
}

func newFixture(t *testing.T, validator policy.Validator, mutate func(*walletgate.Config)) *fixture {
	t.Helper()
	cfg := walletgate.DefaultConfig()
	cfg.Key.Source = "static"
	cfg.Policy.ModuleNumber = "11"
	cfg.RateLimit.Points = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	if validator == nil {
		validator = policy.StaticValidator{Grants: map[string][]string{"E1": {"11"}}}
	}

	c := &clock{}
	c.ns.Store(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC).UnixNano())

	var key fixedKey
	for i := range key {
		key[i] = byte(200 - i)
	}
	gw, err := walletgate.New().
		WithConfig(cfg).
		WithKeySource(key).
		WithPolicyValidator(validator).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(c.Now).
		Build()
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}

	r := mux.NewRouter()
	NewSessionHandler(gw).Register(r)
	return &fixture{gw: gw, router: r, clock: c}
}

func (f *fixture) cookie(t *testing.T, entity string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := f.gw.IssueSession(context.Background(), rec, session.Claims{
		EntityNumber:   entity,
		EmployeeNumber: "P9",
		SessionNumber:  "S9",
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	c := rec.Result().Cookies()[0]
	return &http.Cookie{Name: c.Name, Value: c.Value}
}

func (f *fixture) do(method, target string, body io.Reader, cookie *http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "http://wallet.test"+target, body)
	r.RemoteAddr = "192.0.2.10:5000"
	if cookie != nil {
		r.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestValidateMissingCookie(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, ValidatePath, nil, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected no-store")
	}
	body := decode[ValidateResponse](t, rec)
	if body.CookieExists || body.IsValid != "false" || body.Message != MessageCookieNotFound {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestValidateInvalidToken(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, ValidatePath, nil, &http.Cookie{Name: session.DefaultCookieName, Value: "x.y.z"})

	body := decode[ValidateResponse](t, rec)
	if rec.Code != http.StatusUnauthorized || !body.CookieExists || body.Message != MessageSessionInvalid {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestValidateGranted(t *testing.T) {
	f := newFixture(t, nil, nil)
	cookie := f.cookie(t, "E1")

	rec := f.do(http.MethodGet, ValidatePath, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode[ValidateResponse](t, rec)
	if body.IsValid != "true" || body.ModuleNumber != "11" || body.ElapsedTime != "just now" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Payload != (SessionPayload{SessionNumber: "S9", EntityNumber: "E1", EmployeeNumber: "P9"}) {
		t.Fatalf("unexpected payload %+v", body.Payload)
	}

	f.clock.Advance(2*time.Hour + 5*time.Minute)
	body = decode[ValidateResponse](t, f.do(http.MethodGet, ValidatePath, nil, cookie))
	if body.ElapsedTime != "2 hours ago" {
		t.Fatalf("unexpected elapsed %q", body.ElapsedTime)
	}
}

func TestValidateDenied(t *testing.T) {
	f := newFixture(t, policy.ValidatorFunc(func(context.Context, string, string) (policy.Result, error) {
		return policy.Result{Valid: false}, nil
	}), nil)

	rec := f.do(http.MethodGet, ValidatePath, nil, f.cookie(t, "E1"))
	body := decode[ValidateResponse](t, rec)
	if rec.Code != http.StatusForbidden || body.IsValid != "false" || body.Message != MessageModuleDenied {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
	if body.Payload.EntityNumber != "E1" {
		t.Fatalf("denial must echo the session payload, got %+v", body.Payload)
	}
}

func TestValidatePolicyError(t *testing.T) {
	f := newFixture(t, policy.ValidatorFunc(func(context.Context, string, string) (policy.Result, error) {
		return policy.Result{}, policy.ErrUnavailable
	}), nil)

	rec := f.do(http.MethodGet, ValidatePath, nil, f.cookie(t, "E1"))
	body := decode[ValidateResponse](t, rec)
	if rec.Code != http.StatusBadGateway || body.Message != walletgate.MessagePolicyUnavailable {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestValidateModuleNotConfigured(t *testing.T) {
	f := newFixture(t, nil, func(c *walletgate.Config) { c.Policy.ModuleNumber = "" })

	rec := f.do(http.MethodGet, ValidatePath, nil, f.cookie(t, "E1"))
	body := decode[ValidateResponse](t, rec)
	if rec.Code != http.StatusUnauthorized || body.Message != MessageModuleMissing {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestValidateRateLimited(t *testing.T) {
	f := newFixture(t, nil, func(c *walletgate.Config) { c.RateLimit.Points = 1 })

	_ = f.do(http.MethodGet, ValidatePath, nil, nil)
	rec := f.do(http.MethodGet, ValidatePath, nil, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
	if body := decode[ValidateResponse](t, rec); body.Message != walletgate.MessageTooManyRequests {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRead(t *testing.T) {
	f := newFixture(t, nil, nil)

	body := decode[ReadResponse](t, f.do(http.MethodGet, ReadPath, nil, nil))
	if body.Exists || body.Message != MessageNoSessionCookie || body.Session != nil {
		t.Fatalf("unexpected no-cookie body %+v", body)
	}

	body = decode[ReadResponse](t, f.do(http.MethodGet, ReadPath, nil, &http.Cookie{Name: session.DefaultCookieName, Value: "bad"}))
	if body.Exists || body.Message != MessageSessionExpired {
		t.Fatalf("unexpected invalid body %+v", body)
	}

	rec := f.do(http.MethodGet, ReadPath, nil, f.cookie(t, "E7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body = decode[ReadResponse](t, rec)
	if !body.Exists || body.Session == nil || body.Session.EntityNumber != "E7" || body.Session.SessionNumber != "S9" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Session.ExpiresAt == nil || !body.Session.ExpiresAt.Equal(f.clock.Now().Add(session.DefaultTTL)) {
		t.Fatalf("unexpected expiry %+v", body.Session.ExpiresAt)
	}
	if strings.Contains(rec.Body.String(), "__Host-") {
		t.Fatal("read response must not echo cookies")
	}
}

func TestReadDoesNotCallPolicy(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t, policy.ValidatorFunc(func(context.Context, string, string) (policy.Result, error) {
		calls.Add(1)
		return policy.Result{Valid: true}, nil
	}), nil)

	_ = f.do(http.MethodGet, ReadPath, nil, f.cookie(t, "E1"))
	if calls.Load() != 0 {
		t.Fatalf("expected no policy calls, got %d", calls.Load())
	}
}

func TestDeleteOne(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodDelete, DeleteOnePath, nil, f.cookie(t, "E1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["message"]; got != MessageSessionDeleted {
		t.Fatalf("unexpected message %q", got)
	}
	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("cookie %s not expired", c.Name)
		}
		names[c.Name] = true
	}
	for _, want := range session.CookieNames(session.DefaultCookieName) {
		if !names[want] {
			t.Fatalf("missing deletion cookie %s", want)
		}
	}

	if rec := f.do(http.MethodGet, DeleteOnePath, nil, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestAccessDeniedPage(t *testing.T) {
	f := newFixture(t, nil, nil)
	back := "https://wallet.test/ledgers?x=1"
	rec := f.do(http.MethodGet, walletgate.DefaultAccessDeniedPath+"?return_to="+url.QueryEscape(back), nil, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := "return_to=" + url.QueryEscape(back)
	if !strings.Contains(rec.Body.String(), strings.ReplaceAll(want, "&", "&amp;")) {
		t.Fatalf("page missing login link with %s: %s", want, rec.Body.String())
	}
}

func TestAccessDeniedPageDropsUnsafeReturnTo(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, walletgate.DefaultAccessDeniedPath+"?return_to="+url.QueryEscape("javascript:alert(1)"), nil, nil)

	if strings.Contains(rec.Body.String(), "return_to") || strings.Contains(rec.Body.String(), "javascript") {
		t.Fatalf("unsafe return_to rendered: %s", rec.Body.String())
	}
}

func TestDevLoginDisabledByDefault(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodPost, DevLoginPath, strings.NewReader(`{"entity_number":"E1","employee_number":"P1"}`), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDevLogin(t *testing.T) {
	f := newFixture(t, nil, func(c *walletgate.Config) {
		c.DevMode = true
		c.DevLogin = true
	})

	rec := f.do(http.MethodPost, DevLoginPath, strings.NewReader(`{"entity_number":"E1","employee_number":"P1"}`), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode[DevLoginResponse](t, rec)
	if body.Session == nil || len(body.Session.SessionNumber) != 36 {
		t.Fatalf("expected uuid session number, got %+v", body.Session)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Secure {
		t.Fatalf("expected one non-secure dev cookie, got %+v", cookies)
	}
	check := decode[ValidateResponse](t, f.do(http.MethodGet, ValidatePath, nil, &http.Cookie{Name: cookies[0].Name, Value: cookies[0].Value}))
	if check.IsValid != "true" || check.Payload.SessionNumber != body.Session.SessionNumber {
		t.Fatalf("issued session does not validate: %+v", check)
	}
}

func TestDevLoginRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil, func(c *walletgate.Config) {
		c.DevMode = true
		c.DevLogin = true
	})

	for _, body := range []string{
		`not json`,
		`{"entity_number":"E1"}`,
		`{"entity_number":"E1","employee_number":"P1","role":"admin"}`,
	} {
		if rec := f.do(http.MethodPost, DevLoginPath, strings.NewReader(body), nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodGet, HealthPath, nil, nil)
	body := decode[HealthResponse](t, rec)
	if rec.Code != http.StatusOK || body.Status != "ok" || !body.KeyLoaded {
		t.Fatalf("unexpected health %d %+v", rec.Code, body)
	}
}
