// Package prometheus renders walletgate metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [walletgate.Gateway] snapshot on every
// scrape. Counters are named walletgate_*_total; the gate and policy latency
// histograms are walletgate_evaluate_latency_seconds and
// walletgate_policy_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate gateway state.
package prometheus
