// Package session issues and reads the encrypted session token carried in the
// session cookie.
//
// # Token format
//
// Tokens are JWE compact serializations using direct key agreement ("dir")
// and AES-256-GCM content encryption, with a "JWT" typ header. The plaintext
// is a JSON claims set: entity_number, employee_number, optional
// session_number, iat and exp.
//
// # Decode contract
//
// [Codec.Decode] never panics and never reports a malformed, forged, expired
// or incomplete token as an error: all of those decode to (nil, nil). A
// non-nil error means the key could not be obtained.
//
// # What this package must NOT do
//
//   - Import walletgate (no upward imports).
//   - Log token values or key material.
//   - Make authorization decisions.
package session
