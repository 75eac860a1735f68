// Package auth authenticates inbound requests via internal HS256 bearer
// tokens or an external OIDC RS256 identity provider, and exposes the
// resulting Identity (subject, scopes, tenant) through the request context.
package auth

import "context"

// Method describes how the caller was authenticated.
const (
	MethodHS256 = "hs256"
	MethodOIDC  = "oidc"
)

// Identity is the authenticated caller for the current request.
type Identity struct {
	Subject  string   // token "sub" claim
	TenantID string   // resolved tenant id, normalized by internal/tenant
	Scopes   []string // space- or array-form "scope" claim, or Keycloak roles
	Method   string   // one of the Method* constants
}

// HasScope reports whether id carries exactly scope. It does not treat
// "tenant:admin" as a superset; RequireAnyScope applies that rule.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether id carries at least one of scopes.
func (id *Identity) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if id.HasScope(s) {
			return true
		}
	}
	return false
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores id in ctx.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the Identity stored by Middleware. Returns nil if
// none is present (public routes never call this).
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
