// Package rate provides the per-client request limiters used by the gateway.
//
// # Window semantics
//
// Every strategy grants Points requests per Window to one client id:
//   - fixed_window: in-memory counter, window opens on the client's first hit.
//   - token_bucket: golang.org/x/time/rate bucket refilled at Window/Points.
//   - redis: shared fixed-window counter, INCR + PEXPIRE on first hit in one
//     Lua call. Key prefix: wg:rl:
//
// # Failure semantics
//
// Limiters fail open. A Redis error falls back to an in-memory window and a
// panic inside Admit admits the request.
//
// # What this package must NOT do
//
//   - Decide response shapes (the gateway owns 429 rendering).
//   - Be imported outside the walletgate module.
package rate
