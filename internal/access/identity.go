// Package access resolves caller identities and enforces role and enrollment gates.
package access

import (
	"context"

	"lmsapi/pkg/domain"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UID        string
	Email      string
	Role       domain.Role
	RoleSource RoleSource
}

// IsAdmin reports whether the caller has the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == domain.RoleAdmin
}

type identityContextKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the attached identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
