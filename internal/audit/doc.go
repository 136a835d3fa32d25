// Package audit dispatches gate decisions and session lifecycle events to a
// pluggable sink without blocking the request path.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines writer, slog, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: one decision with request id, path, entity, module and outcome.
//
// # What this package must NOT do
//
//   - Decide which events to emit (the gateway does).
//   - Carry session tokens or key material in events.
//   - Import walletgate or any sibling internal package.
package audit
