package walletgate

import (
	"context"

	"github.com/jefoffice/walletgate/session"
)

type claimsContextKey struct{}
type requestIDContextKey struct{}

// WithClaims attaches decoded session claims to ctx. The gate middleware
// calls it for every request it passes.
func WithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsContextKey{}).(*session.Claims)
	return claims, ok && claims != nil
}

// WithRequestID attaches a request correlation id to ctx. Audit events and
// gate log lines carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
