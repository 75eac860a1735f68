// Package tenant implements the column-based multi-tenancy contract: every
// mutable entity carries an opaque tenant_id string column, defaulting to
// "default". This deliberately diverges from the schema-per-tenant model
// used elsewhere in the example pack (see DESIGN.md) because the
// specification's data model scopes rows by a tenant_id column, not by a
// PostgreSQL schema.
package tenant

import (
	"context"
	"net/http"
)

// DefaultTenantID is used whenever a caller supplies no tenant identity.
const DefaultTenantID = "default"

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// NewContext stores the resolved tenant id in the context.
func NewContext(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// FromContext extracts the resolved tenant id. Returns DefaultTenantID if unset.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok && v != "" {
		return v
	}
	return DefaultTenantID
}

// Normalize maps an empty tenant id to DefaultTenantID, mirroring the
// original project's ensure_tenant default.
func Normalize(tenantID string) string {
	if tenantID == "" {
		return DefaultTenantID
	}
	return tenantID
}

// Middleware resolves the tenant id for the request from the authenticated
// identity (see internal/auth) and stores it in the context. It must run
// after the auth middleware.
func Middleware(resolve func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := Normalize(resolve(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), tenantID)))
		})
	}
}
