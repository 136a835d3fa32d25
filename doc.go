// Package walletgate is the access-control gate placed in front of a JEF
// Office web application. Every request is classified by path, rate limited
// per client, checked for an encrypted session cookie and, on module-gated
// paths, checked against the remote entitlement service.
//
// The package is designed for concurrent server workloads: Gateway methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// walletgate is the public surface. It exposes [Gateway], [Builder], [Config],
// [Decision] and the metrics and audit value types. The building blocks live
// in sub-packages: keys (session key retrieval), session (token codec and
// cookies), policy (module entitlement) and internal/rate (limiters). The
// HTTP layer lives in middleware and handlers and only talks to [Gateway].
//
// # What this package must NOT do
//
//   - Log, audit or export token values or key material.
//   - Fail open on session or key errors. Only the rate limiter admits on
//     internal failure.
//   - Cache a failed key or module lookup.
//   - Perform I/O during Build. The session key is fetched on first use.
//
// # Performance contract
//
// Evaluate is the hot path. After the session key is cached, always-allowed
// and session-only paths complete without network round-trips (except the
// redis limiter strategy). Module-gated paths add one policy call bounded by
// Policy.Timeout.
package walletgate
