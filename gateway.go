package walletgate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jefoffice/walletgate/internal/audit"
	"github.com/jefoffice/walletgate/internal/rate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/policy"
	"github.com/jefoffice/walletgate/session"
)

// RateDecision is the outcome of one limiter admission.
type RateDecision = rate.Decision

// SessionState describes the session cookie of a request.
type SessionState struct {
	// CookieExists is true when any session cookie variant carried a value.
	CookieExists bool
	// Claims is nil unless the token decoded to a current, complete session.
	Claims *session.Claims
}

// ModuleVerdict is the answer of one module authorization check.
type ModuleVerdict struct {
	ModuleNumber string
	Valid        bool
	Message      string
}

// Gateway owns every collaborator of the access-control gate. Build one with
// New().Build(); it is safe for concurrent use.
type Gateway struct {
	config Config

	codec     *session.Codec
	keys      *keys.Provider
	limiter   rate.Limiter
	validator policy.Validator
	module    *moduleResolver
	routes    routeTable
	loginURL  *url.URL

	metrics *Metrics
	audit   *audit.Dispatcher
	logger  *slog.Logger
	now     func() time.Time
}

// Config returns a copy of the gateway configuration.
func (g *Gateway) Config() Config {
	return cloneConfig(g.config)
}

// Logger returns the gateway logger.
func (g *Gateway) Logger() *slog.Logger {
	return g.logger
}

// Now returns the gateway clock reading.
func (g *Gateway) Now() time.Time {
	return g.now()
}

// Classify returns the gate treatment of path.
//
// Patterns are exact ("/healthz"), prefix ("/static/*") or suffix ("*.png").
// Always-allowed patterns win over session-only ones; anything unmatched
// requires a module check. The access-denied path is always allowed.
func (g *Gateway) Classify(path string) PathClass {
	return g.routes.classify(path)
}

// IsAPIPath reports whether path gets JSON errors instead of redirects.
func (g *Gateway) IsAPIPath(path string) bool {
	return g.routes.isAPI(path)
}

// Admit consumes one unit of the caller's rate budget.
func (g *Gateway) Admit(r *http.Request) RateDecision {
	d := g.limiter.Admit(r.Context(), rate.ClientID(r))
	if !d.Allowed {
		g.metrics.Inc(MetricRateLimited)
	}
	return d
}

// ReadSession extracts and decodes the session cookie. The error is non-nil
// only when the session key is unavailable and wraps ErrSessionKey.
func (g *Gateway) ReadSession(r *http.Request) (SessionState, error) {
	token, ok := session.TokenFromRequest(r, g.config.Cookie.Name)
	if !ok {
		return SessionState{}, nil
	}
	claims, err := g.codec.Decode(r.Context(), token)
	if err != nil {
		return SessionState{CookieExists: true}, fmt.Errorf("%w: %w", ErrSessionKey, err)
	}
	return SessionState{CookieExists: true, Claims: claims}, nil
}

// ModuleNumber resolves the configured module id.
func (g *Gateway) ModuleNumber(ctx context.Context) (string, error) {
	return g.module.Resolve(ctx)
}

// CheckModule asks the policy service whether entityNumber may use the
// configured module. The call is bounded by the policy timeout even when the
// validator ignores its context.
//
// Errors wrap ErrModuleNotConfigured or ErrPolicyService. A denial is not an
// error: it is reported through ModuleVerdict.Valid.
func (g *Gateway) CheckModule(ctx context.Context, entityNumber string) (ModuleVerdict, error) {
	module, err := g.module.Resolve(ctx)
	if err != nil {
		g.metrics.Inc(MetricModuleNotConfigured)
		return ModuleVerdict{}, err
	}
	verdict := ModuleVerdict{ModuleNumber: module}

	pctx, cancel := context.WithTimeout(ctx, g.config.Policy.Timeout)
	defer cancel()

	type outcome struct {
		res policy.Result
		err error
	}
	ch := make(chan outcome, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("validator panic: %v", r)}
			}
		}()
		res, err := g.validator.Validate(pctx, entityNumber, module)
		ch <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-pctx.Done():
		out = outcome{err: pctx.Err()}
	}
	g.metrics.Observe(MetricPolicyLatency, time.Since(start))

	if out.err != nil {
		g.metrics.Inc(MetricPolicyError)
		return verdict, fmt.Errorf("%w: %w", ErrPolicyService, out.err)
	}

	verdict.Valid = out.res.Valid
	verdict.Message = out.res.Message
	if verdict.Valid {
		g.metrics.Inc(MetricModuleAllowed)
	} else {
		g.metrics.Inc(MetricModuleDenied)
	}
	return verdict, nil
}

func (g *Gateway) cookieConfig() session.CookieConfig {
	return session.CookieConfig{
		Name:    g.config.Cookie.Name,
		Domain:  g.config.Cookie.Domain,
		DevMode: g.config.DevMode,
	}
}

// IssueSession seals in and sets the session cookie on w.
func (g *Gateway) IssueSession(ctx context.Context, w http.ResponseWriter, in session.Claims) (*session.Claims, error) {
	token, claims, err := g.codec.Issue(ctx, in)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, session.NewCookie(g.cookieConfig(), token, claims.ExpiresTime()))
	g.metrics.Inc(MetricSessionIssued)
	g.audit.Emit(ctx, AuditEvent{
		Timestamp:      g.now(),
		EventType:      AuditSessionIssued,
		RequestID:      RequestIDFromContext(ctx),
		EntityNumber:   claims.EntityNumber,
		EmployeeNumber: claims.EmployeeNumber,
		Success:        true,
	})
	return claims, nil
}

// ClearSession expires the session cookie and its hardened variants.
func (g *Gateway) ClearSession(w http.ResponseWriter, r *http.Request) {
	for _, c := range session.ExpiredCookies(g.cookieConfig()) {
		http.SetCookie(w, c)
	}
	g.metrics.Inc(MetricSessionDeleted)
	g.audit.Emit(r.Context(), AuditEvent{
		Timestamp: g.now(),
		EventType: AuditSessionDeleted,
		RequestID: RequestIDFromContext(r.Context()),
		ClientID:  rate.ClientID(r),
		Path:      r.URL.Path,
		Success:   true,
	})
}

// RequestURL reconstructs the absolute URL the client requested, honouring
// X-Forwarded-Proto and X-Forwarded-Host.
func (g *Gateway) RequestURL(r *http.Request) string {
	u := url.URL{
		Scheme:   g.requestScheme(r),
		Host:     g.requestHost(r),
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// LoginURL is the login page with return_to set to the current request.
func (g *Gateway) LoginURL(r *http.Request) string {
	u := *g.loginURL
	q := u.Query()
	q.Set("return_to", g.RequestURL(r))
	u.RawQuery = q.Encode()
	return u.String()
}

// AccessDeniedURL is the absolute access-denied page with return_to set to
// the current request.
func (g *Gateway) AccessDeniedURL(r *http.Request) string {
	u := url.URL{
		Scheme:   g.requestScheme(r),
		Host:     g.requestHost(r),
		Path:     g.config.Routes.AccessDeniedPath,
		RawQuery: url.Values{"return_to": {g.RequestURL(r)}}.Encode(),
	}
	return u.String()
}

// RawLoginURL is the configured login URL without return_to.
func (g *Gateway) RawLoginURL() string {
	return g.loginURL.String()
}

// X-Forwarded-* headers are read only with Routes.TrustForwardedHeaders set.
func (g *Gateway) requestScheme(r *http.Request) string {
	if g.config.Routes.TrustForwardedHeaders {
		if p := firstHeaderValue(r, "X-Forwarded-Proto"); p == "http" || p == "https" {
			return p
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (g *Gateway) requestHost(r *http.Request) string {
	if g.config.Routes.TrustForwardedHeaders {
		if h := firstHeaderValue(r, "X-Forwarded-Host"); h != "" {
			return h
		}
	}
	return r.Host
}

func firstHeaderValue(r *http.Request, name string) string {
	v, _, _ := strings.Cut(r.Header.Get(name), ",")
	return strings.ToLower(strings.TrimSpace(v))
}

// Metrics returns the live metrics set.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

// MetricsSnapshot implements the exporters' metrics source.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot {
	return g.metrics.Snapshot()
}

// AuditDropped counts audit events dropped for backpressure.
func (g *Gateway) AuditDropped() uint64 {
	return g.audit.Dropped()
}

// KeyLoaded reports whether the session key has been fetched. It is true for
// gateways built with an explicit key source.
func (g *Gateway) KeyLoaded() bool {
	if g.keys == nil {
		return true
	}
	return g.keys.Loaded()
}

// Close drains the audit dispatcher.
func (g *Gateway) Close(ctx context.Context) error {
	return g.audit.Close(ctx)
}
