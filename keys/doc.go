// Package keys resolves the 32-byte symmetric key that protects session tokens.
//
// The key lives in an external secret store (AWS SSM Parameter Store in
// production) and is fetched lazily on first use, then cached for the
// lifetime of the process.
//
// # Concurrency
//
// A cache hit is a single atomic load. Concurrent misses collapse into one
// outbound fetch through a singleflight group; every waiter observes the same
// result. Failures are never cached, so the next caller retries.
//
// # What this package must NOT do
//
//   - Log, format, or otherwise expose key material.
//   - Import walletgate or session (no upward imports).
package keys
