// Package otel publishes walletgate metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per walletgate
// counter and one Int64ObservableGauge per histogram bucket. A single callback
// reads [walletgate.Gateway.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate gateway state.
package otel
