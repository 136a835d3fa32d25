package walletgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one gateway counter or histogram.
type MetricID uint16

const (
	// MetricRequestPassed counts gated requests handed to the application.
	MetricRequestPassed MetricID = iota
	// MetricAlwaysAllowed counts requests on always-allowed paths.
	MetricAlwaysAllowed
	// MetricRateLimited counts requests rejected with 429.
	MetricRateLimited
	// MetricLimiterFallback counts shared-limiter failures served locally.
	MetricLimiterFallback
	// MetricNoSession counts requests without a session cookie.
	MetricNoSession
	// MetricSessionInvalid counts cookies that did not decode to a session.
	MetricSessionInvalid
	// MetricSessionKeyError counts requests failed closed on key errors.
	MetricSessionKeyError
	// MetricModuleAllowed counts successful module checks.
	MetricModuleAllowed
	// MetricModuleDenied counts module checks answered with is_valid=false.
	MetricModuleDenied
	// MetricPolicyError counts policy failures and timeouts.
	MetricPolicyError
	// MetricModuleNotConfigured counts checks skipped for lack of a module id.
	MetricModuleNotConfigured
	// MetricPanicRecovered counts gate panics mapped to the login outcome.
	MetricPanicRecovered
	// MetricSessionIssued counts tokens issued.
	MetricSessionIssued
	// MetricSessionDeleted counts logout cookie deletions.
	MetricSessionDeleted
	// MetricKeyFetch counts outbound session-key fetches.
	MetricKeyFetch
	// MetricKeyFetchFailure counts failed session-key fetches.
	MetricKeyFetchFailure
	// MetricEvaluateLatency is the end-to-end gate decision latency histogram.
	MetricEvaluateLatency
	// MetricPolicyLatency is the policy round-trip latency histogram.
	MetricPolicyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of Metrics. Histogram buckets are
// non-cumulative, bounded at 5, 10, 25, 50, 100, 250, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honouring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricEvaluateLatency, MetricPolicyLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricEvaluateLatency || id == MetricPolicyLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

// keyObserver feeds key-provider fetch events into Metrics.
type keyObserver struct {
	metrics *Metrics
}

func (o keyObserver) KeyFetchStarted()     { o.metrics.Inc(MetricKeyFetch) }
func (o keyObserver) KeyFetchFailed(error) { o.metrics.Inc(MetricKeyFetchFailure) }
