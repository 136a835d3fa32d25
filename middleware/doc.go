// Package middleware adapts walletgate.Gateway to net/http.
//
// # Handlers
//
//   - [Gate] runs Gateway.Evaluate and answers rejected requests.
//   - [RequestID] assigns the X-Request-ID correlation id.
//   - [Logging] writes one slog line per request.
//
// Rejections are shaped by [WriteDecision]: JSON for API paths and 429s, a
// 307 redirect for pages. Every JSON response carries Cache-Control: no-store.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Gateway calls. It does NOT
// implement session, rate-limit or module logic itself; all decisions are
// delegated to Gateway.Evaluate.
//
// # What this package must NOT do
//
//   - Read or decode session cookies directly (delegates to Gateway).
//   - Log request headers, cookies or query strings.
//   - Make authorization decisions beyond writing the Decision it is given.
package middleware
