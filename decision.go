package walletgate

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jefoffice/walletgate/internal/rate"
	"github.com/jefoffice/walletgate/session"
)

// Outcome is the gate verdict for one request.
type Outcome uint8

const (
	// OutcomeUnknown is the zero value. The HTTP layer answers it like a
	// missing session and never passes it through.
	OutcomeUnknown Outcome = iota
	// OutcomePass hands the request to the application.
	OutcomePass
	// OutcomeRateLimited answers 429 with Retry-After.
	OutcomeRateLimited
	// OutcomeLogin sends pages to the login page and APIs a 401.
	OutcomeLogin
	// OutcomeAccessDenied sends pages to the access-denied page and APIs a
	// 401, 403 or 502.
	OutcomeAccessDenied
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeLogin:
		return "login"
	case OutcomeAccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Response messages for API-shaped paths.
const (
	MessageUnauthorized      = "Unauthorized"
	MessageForbidden         = "Forbidden"
	MessageTooManyRequests   = "Too many requests. Please slow down."
	MessagePolicyUnavailable = "Authorization service unavailable"

	redirectStatus = http.StatusTemporaryRedirect
)

// Decision tells the HTTP layer how to answer a request.
type Decision struct {
	Outcome Outcome
	Class   PathClass
	// API is true for paths under the API prefix.
	API bool
	// Status is the response status: 307 for page redirects, the error
	// status for API responses, 0 on pass.
	Status int
	// Message is the JSON message for API responses and 429s.
	Message string
	// Location is the redirect target for page responses.
	Location string
	// RetryAfter is the Retry-After value in seconds for 429s.
	RetryAfter int
	// Claims is set on pass for session-checked paths.
	Claims       *session.Claims
	ModuleNumber string
	// Reason is nil on pass and otherwise one of the package sentinels.
	Reason error
}

// Evaluate runs the gate for r:
//
//  1. always-allowed paths pass untouched;
//  2. the client's rate budget is consumed (429 when exhausted);
//  3. the session cookie must decode (login redirect or 401 otherwise; key
//     failures are treated the same way);
//  4. session-only paths pass;
//  5. the policy service must grant the module (access-denied redirect, or
//     401 when no module is configured, 403 on denial, 502 on failure).
//
// A panic anywhere in the decision yields the login outcome.
func (g *Gateway) Evaluate(r *http.Request) (d Decision) {
	start := time.Now()
	path := r.URL.Path
	d = Decision{
		Class: g.routes.classify(path),
		API:   g.routes.isAPI(path),
	}

	defer func() {
		if rec := recover(); rec != nil {
			g.metrics.Inc(MetricPanicRecovered)
			g.logger.Error("gate panic recovered",
				slog.String("path", path),
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.Any("panic", rec),
			)
			d = g.login(r, d, ErrGatePanic)
		}
		g.metrics.Observe(MetricEvaluateLatency, time.Since(start))
		g.record(r, d)
	}()

	if d.Class == PathAlwaysAllowed {
		g.metrics.Inc(MetricAlwaysAllowed)
		d.Outcome = OutcomePass
		return d
	}

	if rd := g.Admit(r); !rd.Allowed {
		return g.rateLimited(d, rd)
	}

	state, err := g.ReadSession(r)
	switch {
	case err != nil:
		g.metrics.Inc(MetricSessionKeyError)
		g.logger.Error("session key unavailable",
			slog.String("path", path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		return g.login(r, d, ErrSessionKey)
	case !state.CookieExists:
		g.metrics.Inc(MetricNoSession)
		return g.login(r, d, ErrNoSession)
	case state.Claims == nil:
		g.metrics.Inc(MetricSessionInvalid)
		return g.login(r, d, ErrNoSession)
	}

	if d.Class == PathRequiresSession {
		return g.pass(d, state.Claims)
	}

	verdict, err := g.CheckModule(r.Context(), state.Claims.EntityNumber)
	d.ModuleNumber = verdict.ModuleNumber
	switch {
	case errors.Is(err, ErrModuleNotConfigured):
		g.logger.Warn("module number unavailable", slog.String("error", err.Error()))
		return g.deny(r, d, http.StatusUnauthorized, MessageUnauthorized, ErrModuleNotConfigured)
	case err != nil:
		g.logger.Warn("policy check failed",
			slog.String("path", path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		return g.deny(r, d, http.StatusBadGateway, MessagePolicyUnavailable, ErrPolicyService)
	case !verdict.Valid:
		return g.deny(r, d, http.StatusForbidden, MessageForbidden, ErrAccessDenied)
	}
	return g.pass(d, state.Claims)
}

func (g *Gateway) pass(d Decision, claims *session.Claims) Decision {
	g.metrics.Inc(MetricRequestPassed)
	d.Outcome = OutcomePass
	d.Claims = claims
	return d
}

func (g *Gateway) rateLimited(d Decision, rd rate.Decision) Decision {
	d.Outcome = OutcomeRateLimited
	d.Status = http.StatusTooManyRequests
	d.Message = MessageTooManyRequests
	d.RetryAfter = rd.RetryAfterSeconds()
	d.Reason = ErrRateLimited
	return d
}

func (g *Gateway) login(r *http.Request, d Decision, reason error) Decision {
	d.Outcome = OutcomeLogin
	d.Claims = nil
	d.Reason = reason
	if d.API {
		d.Status = http.StatusUnauthorized
		d.Message = MessageUnauthorized
		return d
	}
	d.Status = redirectStatus
	d.Location = g.LoginURL(r)
	return d
}

func (g *Gateway) deny(r *http.Request, d Decision, status int, message string, reason error) Decision {
	d.Outcome = OutcomeAccessDenied
	d.Claims = nil
	d.Reason = reason
	if d.API {
		d.Status = status
		d.Message = message
		return d
	}
	d.Status = redirectStatus
	d.Location = g.AccessDeniedURL(r)
	return d
}

func (g *Gateway) record(r *http.Request, d Decision) {
	if g.audit == nil || d.Class == PathAlwaysAllowed {
		return
	}

	event := AuditEvent{
		Timestamp:    g.now(),
		EventType:    auditEventType(d),
		RequestID:    RequestIDFromContext(r.Context()),
		ClientID:     rate.ClientID(r),
		Method:       r.Method,
		Path:         r.URL.Path,
		ModuleNumber: d.ModuleNumber,
		Status:       d.Status,
		Success:      d.Outcome == OutcomePass,
		Error:        auditErrorCode(d.Reason),
	}
	if d.Claims != nil {
		event.EntityNumber = d.Claims.EntityNumber
		event.EmployeeNumber = d.Claims.EmployeeNumber
	}
	g.audit.Emit(r.Context(), event)
}

func auditEventType(d Decision) string {
	switch {
	case d.Outcome == OutcomePass:
		return AuditGatePass
	case errors.Is(d.Reason, ErrRateLimited):
		return AuditGateRateLimited
	case errors.Is(d.Reason, ErrSessionKey):
		return AuditGateSessionKey
	case errors.Is(d.Reason, ErrGatePanic):
		return AuditGatePanic
	case errors.Is(d.Reason, ErrModuleNotConfigured):
		return AuditGateNoModule
	case errors.Is(d.Reason, ErrPolicyService):
		return AuditGatePolicyError
	case errors.Is(d.Reason, ErrAccessDenied):
		return AuditGateAccessDenied
	default:
		return AuditGateNoSession
	}
}
