package prometheus

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/policy"
)

type fakeSource struct {
	snapshot walletgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() walletgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletgate.MetricsSnapshot{
			Counters:   map[walletgate.MetricID]uint64{},
			Histograms: map[walletgate.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletgate.MetricsSnapshot{
			Counters: map[walletgate.MetricID]uint64{
				walletgate.MetricRateLimited: 7,
			},
			Histograms: map[walletgate.MetricID][]uint64{
				walletgate.MetricEvaluateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE walletgate_rate_limited_total counter",
		"walletgate_rate_limited_total 7",
		"walletgate_request_passed_total 0",
		`walletgate_evaluate_latency_seconds_bucket{le="0.005"} 1`,
		`walletgate_evaluate_latency_seconds_bucket{le="+Inf"} 36`,
		"walletgate_evaluate_latency_seconds_count 36",
		"walletgate_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "walletgate_policy_latency_seconds") {
		t.Fatalf("absent histogram must not be rendered, got:\n%s", out)
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if exp.Render() != "" {
		t.Fatal("nil exporter must render nothing")
	}
	if NewPrometheusExporter(nil).Render() != "" {
		t.Fatal("exporter without gateway must render nothing")
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletgate.MetricsSnapshot{
			Counters:   map[walletgate.MetricID]uint64{walletgate.MetricNoSession: 1},
			Histograms: map[walletgate.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "walletgate_no_session_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

type staticKey keys.Key

func (k staticKey) Key(context.Context) (keys.Key, error) { return keys.Key(k), nil }

func TestExporterReadsGateway(t *testing.T) {
	cfg := walletgate.DefaultConfig()
	cfg.Policy.ModuleNumber = "11"
	cfg.RateLimit.Points = 100
	gw, err := walletgate.New().
		WithConfig(cfg).
		WithKeySource(staticKey{1}).
		WithPolicyValidator(policy.StaticValidator{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_ = gw.Evaluate(httptest.NewRequest(http.MethodGet, "http://app.test/ledgers", nil))
	_ = gw.Evaluate(httptest.NewRequest(http.MethodGet, "http://app.test/robots.txt", nil))

	out := NewPrometheusExporter(gw).Render()
	for _, want := range []string{
		"walletgate_no_session_total 1",
		"walletgate_always_allowed_total 1",
		`walletgate_evaluate_latency_seconds_bucket{le="+Inf"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
