package internaldefs

import (
	"github.com/jefoffice/walletgate"
)

// CounterDef names one walletgate counter for export.
type CounterDef struct {
	ID   walletgate.MetricID
	Name string
	Help string
}

// HistogramDef names one walletgate latency histogram for export.
type HistogramDef struct {
	ID   walletgate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "walletgate_audit_dropped_total"

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: walletgate.MetricRequestPassed, Name: "walletgate_request_passed_total", Help: "Gated requests handed to the application."},
	{ID: walletgate.MetricAlwaysAllowed, Name: "walletgate_always_allowed_total", Help: "Requests on always-allowed paths."},
	{ID: walletgate.MetricRateLimited, Name: "walletgate_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	{ID: walletgate.MetricLimiterFallback, Name: "walletgate_limiter_fallback_total", Help: "Shared limiter failures served from the local window."},
	{ID: walletgate.MetricNoSession, Name: "walletgate_no_session_total", Help: "Requests without a session cookie."},
	{ID: walletgate.MetricSessionInvalid, Name: "walletgate_session_invalid_total", Help: "Session cookies that did not decode to a current session."},
	{ID: walletgate.MetricSessionKeyError, Name: "walletgate_session_key_error_total", Help: "Requests failed closed because the session key was unavailable."},
	{ID: walletgate.MetricModuleAllowed, Name: "walletgate_module_allowed_total", Help: "Module checks granted by the policy service."},
	{ID: walletgate.MetricModuleDenied, Name: "walletgate_module_denied_total", Help: "Module checks denied by the policy service."},
	{ID: walletgate.MetricPolicyError, Name: "walletgate_policy_error_total", Help: "Policy service failures and timeouts."},
	{ID: walletgate.MetricModuleNotConfigured, Name: "walletgate_module_not_configured_total", Help: "Module checks without a resolvable module number."},
	{ID: walletgate.MetricPanicRecovered, Name: "walletgate_panic_recovered_total", Help: "Gate panics recovered as login outcomes."},
	{ID: walletgate.MetricSessionIssued, Name: "walletgate_session_issued_total", Help: "Session tokens issued."},
	{ID: walletgate.MetricSessionDeleted, Name: "walletgate_session_deleted_total", Help: "Session cookies deleted."},
	{ID: walletgate.MetricKeyFetch, Name: "walletgate_key_fetch_total", Help: "Session key fetches from the secret store."},
	{ID: walletgate.MetricKeyFetchFailure, Name: "walletgate_key_fetch_failure_total", Help: "Failed session key fetches."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: walletgate.MetricEvaluateLatency, Name: "walletgate_evaluate_latency_seconds", Help: "Gate decision latency."},
	{ID: walletgate.MetricPolicyLatency, Name: "walletgate_policy_latency_seconds", Help: "Policy service round-trip latency."},
}

// HistogramBounds are the upper bounds of the snapshot buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters without labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
