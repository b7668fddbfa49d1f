package access

import (
	"context"
	"strings"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
)

// RoleSource records which path produced a resolved role.
type RoleSource string

const (
	SourceClaim             RoleSource = "claim"
	SourceStore             RoleSource = "store"
	SourceDefault           RoleSource = "default"
	SourceDefaultAfterError RoleSource = "default-after-error"
)

// UserReader is the store read used for role lookup.
type UserReader interface {
	GetUser(ctx context.Context, uid string) (domain.User, bool, error)
}

// Resolution is the outcome of role resolution. Err is set only for
// SourceDefaultAfterError and is informational.
type Resolution struct {
	Role   domain.Role
	Source RoleSource
	Err    error
}

// RoleResolver maps a subject to its effective role: claim, then store, then student.
type RoleResolver struct {
	users UserReader
}

// NewRoleResolver builds a resolver over the user store.
func NewRoleResolver(users UserReader) *RoleResolver {
	return &RoleResolver{users: users}
}

// Resolve never fails. A non-empty claim is returned unchanged without a
// store read; store errors degrade to student.
func (r *RoleResolver) Resolve(ctx context.Context, uid, claimed string) Resolution {
	if strings.TrimSpace(claimed) != "" {
		return Resolution{Role: domain.Role(claimed), Source: SourceClaim}
	}
	if r.users == nil {
		return Resolution{Role: domain.RoleStudent, Source: SourceDefault}
	}
	user, ok, err := r.users.GetUser(ctx, uid)
	if err == nil && !ok {
		return Resolution{Role: domain.RoleStudent, Source: SourceDefault}
	}
	if err != nil {
		util.LoggerFromContext(ctx).Warn("role lookup failed; defaulting to student", "uid", uid, "err", err)
		return Resolution{Role: domain.RoleStudent, Source: SourceDefaultAfterError, Err: err}
	}
	if user.Role == "" {
		return Resolution{Role: domain.RoleStudent, Source: SourceDefault}
	}
	return Resolution{Role: user.Role, Source: SourceStore}
}

// Identify turns a verified token into a request identity.
func (r *RoleResolver) Identify(ctx context.Context, tok domain.IDToken) Identity {
	res := r.Resolve(ctx, tok.UID, tok.Role)
	return Identity{UID: tok.UID, Email: tok.Email, Role: res.Role, RoleSource: res.Source}
}
