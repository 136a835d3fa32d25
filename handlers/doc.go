// Package handlers serves the shared session endpoints that sit beside the
// gate: validate, read, delete-one, the access-denied page, a health check
// and, in development only, a login stand-in.
//
// All routes are mounted on a gorilla/mux router by [SessionHandler.Register].
// They are always-allowed paths, so the validate endpoint applies the rate
// limit itself.
package handlers
