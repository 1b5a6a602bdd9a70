package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// PrincipalContextKey is the request context key for the authenticated staff user.
type PrincipalContextKey struct{}

const (
	RoleOwner = "owner"
	RoleStaff = "medewerker"
)

// Principal is the authenticated staff identity threaded through handlers
// and services.
type Principal struct {
	UserID   snowflake.ID
	OrgID    snowflake.ID
	Role     string
	Username string
	FullName string
}

func (p Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(OrgContextKey{})
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// WithPrincipal stores the authenticated staff user in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated staff user, if set.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(PrincipalContextKey{}).(Principal)
	return p, ok
}
