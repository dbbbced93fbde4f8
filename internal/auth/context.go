package auth

import (
	"context"

	"github.com/dukerupert/famille/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	MemberID  int64
	Role      model.Role
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func MemberID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.MemberID
}

func Role(ctx context.Context) model.Role {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Role
}

// CanManage reports whether the caller is a parent or an admin.
func CanManage(ctx context.Context) bool {
	return Role(ctx).CanManage()
}

func IsAdmin(ctx context.Context) bool {
	return Role(ctx) == model.RoleAdmin
}

// CanActFor reports whether the caller may act on memberID's behalf:
// managers for anyone, children only for themselves.
func CanActFor(ctx context.Context, memberID int64) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role.CanManage() || ac.MemberID == memberID
}
