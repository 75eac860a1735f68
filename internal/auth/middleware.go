package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/httpserver"
	"github.com/pramana-labs/pramana/internal/tenant"
)

// VerifyFunc validates a raw bearer token and returns the Identity it
// carries. HS256Issuer.Verify and OIDCVerifier.Verify both match this shape
// once adapted by the caller (see internal/app, which picks one based on
// AUTH_MODE).
type VerifyFunc func(ctx context.Context, rawToken string) (*Identity, error)

// Middleware authenticates every request via "Authorization: Bearer <jwt>",
// storing the resulting Identity and tenant id in the request context. It
// rejects requests with no token, a malformed header, or a token the
// verifier declares invalid. Mount this only on routes that require auth;
// public routes (verify, status, did documents, health) skip it entirely.
func Middleware(logger *slog.Logger, verify VerifyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.AuthMissing("missing Authorization header"))
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.AuthInvalid("Authorization header must use the Bearer scheme"))
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
			if raw == "" {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.AuthMissing("empty bearer token"))
				return
			}

			id, err := verify(r.Context(), raw)
			if err != nil {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.AuthInvalid("invalid bearer token: %v", err))
				return
			}

			id.TenantID = tenant.Normalize(id.TenantID)
			ctx := NewContext(r.Context(), id)
			ctx = tenant.NewContext(ctx, id.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyScope rejects requests whose Identity (already stored by
// Middleware) carries none of scopes. tenant:admin always satisfies any
// scope check, since it is the administrative superset per §6.
func RequireAnyScope(logger *slog.Logger, scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.AuthMissing("no authenticated identity"))
				return
			}
			if !id.HasAnyScope(scopes...) && !id.HasScope("tenant:admin") {
				httpserver.RespondErrWithRequestID(w, r, logger, apierr.ScopeInsufficient("requires one of scopes: %s", strings.Join(scopes, ", ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
