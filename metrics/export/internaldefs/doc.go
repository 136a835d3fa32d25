// Package internaldefs holds the metric names, help strings and bucket bounds
// shared by the walletgate exporters, so Prometheus and OTel publish the same
// series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
