package auth

import (
	"context"

	"github.com/harun/beacon/pkg/location"
)

type identityKey struct{}

// WithIdentity attaches the authenticated identity to ctx
func WithIdentity(ctx context.Context, id location.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the authenticated identity, if any
func IdentityFromContext(ctx context.Context) (location.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(location.Identity)
	return id, ok && id != ""
}
