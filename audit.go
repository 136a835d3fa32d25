package walletgate

import (
	"errors"
	"io"
	"log/slog"

	"github.com/jefoffice/walletgate/internal/audit"
)

// AuditEvent is one gate decision or session lifecycle change.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel; useful in tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through slog.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }

// Audit event types.
const (
	AuditGatePass          = "gate.pass"
	AuditGateRateLimited   = "gate.rate_limited"
	AuditGateNoSession     = "gate.no_session"
	AuditGateSessionKey    = "gate.session_key_error"
	AuditGateAccessDenied  = "gate.access_denied"
	AuditGatePolicyError   = "gate.policy_error"
	AuditGateNoModule      = "gate.module_not_configured"
	AuditGatePanic         = "gate.panic_recovered"
	AuditSessionIssued     = "session.issued"
	AuditSessionDeleted    = "session.deleted"
	auditErrorCodeInternal = "internal_error"
)

func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrSessionKey):
		return "session_key_unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrPolicyService):
		return "policy_unavailable"
	case errors.Is(err, ErrModuleNotConfigured):
		return "module_not_configured"
	case errors.Is(err, ErrGatePanic):
		return "panic_recovered"
	default:
		return auditErrorCodeInternal
	}
}
