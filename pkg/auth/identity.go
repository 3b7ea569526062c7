package auth

import (
	"context"
	"net/http"
	"strings"

	"chatrelay/pkg/models"
)

// Identity is the resolved caller for a request: stable id, email and one
// of the two fixed roles. It is resolved once by the gateway and passed
// explicitly through every subsequent call; handlers never re-derive the
// role ad hoc.
type Identity struct {
	ID    string
	Email string
	Role  models.Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

type ctxIdentityKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFromContext returns the resolved identity, if the gateway ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxIdentityKey{}).(Identity)
	return v, ok
}

// ResolveRole maps an authenticated email to a role: exact (case
// insensitive) match against the single configured admin identity is
// admin, every other authenticated identity is client.
func ResolveRole(email, adminEmail string) models.Role {
	if adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), adminEmail) {
		return models.RoleAdmin
	}
	return models.RoleClient
}

// BearerToken extracts the bearer credential from the request, or "".
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
