package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// tenantGroupPrefix is the group-membership convention tenants are
// extracted from: a group named "/tenants/<id>".
const tenantGroupPrefix = "/tenants/"

// OIDCVerifier validates externally issued RS256 bearer tokens and derives
// an Identity from their claims. It supports two configurations:
//
//   - discovery: OIDC_ISSUER is set, keys are rotated automatically via the
//     provider's discovery document (grounded on the teacher's
//     vendor/github.com/wisbric/core/pkg/auth.OIDCAuthenticator).
//   - static JWKS: only OIDC_JWKS_URL or OIDC_JWKS_JSON is set, no
//     discovery endpoint is available; the key set is parsed once with
//     go-jose's jose.JSONWebKeySet.
type OIDCVerifier struct {
	audience string

	discovery *oidc.IDTokenVerifier // non-nil in discovery mode
	keySet    *jose.JSONWebKeySet   // non-nil in static-JWKS mode
}

// NewDiscoveryVerifier performs OIDC discovery against issuerURL.
func NewDiscoveryVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering OIDC provider %s: %w", issuerURL, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience, SkipClientIDCheck: audience == ""})
	return &OIDCVerifier{audience: audience, discovery: verifier}, nil
}

// NewStaticJWKSVerifier builds a verifier from a JWKS document already
// resolved to bytes (fetched from OIDC_JWKS_URL or read from OIDC_JWKS_JSON).
func NewStaticJWKSVerifier(jwksJSON []byte, audience string) (*OIDCVerifier, error) {
	var ks jose.JSONWebKeySet
	if err := json.Unmarshal(jwksJSON, &ks); err != nil {
		return nil, fmt.Errorf("parsing JWKS: %w", err)
	}
	return &OIDCVerifier{audience: audience, keySet: &ks}, nil
}

// FetchJWKS retrieves a JWKS document over HTTPS with a bounded timeout, for
// callers configured with OIDC_JWKS_URL rather than OIDC_JWKS_JSON.
func FetchJWKS(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetching JWKS: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Verify validates a raw bearer token (without the "Bearer " prefix) and
// returns the Identity derived from its claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	claims, err := v.verifyClaims(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}

	return &Identity{
		Subject:  sub,
		TenantID: extractTenant(claims),
		Scopes:   extractScopes(claims),
		Method:   MethodOIDC,
	}, nil
}

func (v *OIDCVerifier) verifyClaims(ctx context.Context, rawToken string) (map[string]any, error) {
	if v.discovery != nil {
		idToken, err := v.discovery.Verify(ctx, rawToken)
		if err != nil {
			return nil, fmt.Errorf("verifying OIDC token: %w", err)
		}
		var claims map[string]any
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("extracting OIDC claims: %w", err)
		}
		return claims, nil
	}

	tok, err := jwt.ParseSigned(rawToken, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var claims map[string]any
	if err := tok.Claims(v.keySet, &registered, &claims); err != nil {
		return nil, fmt.Errorf("verifying token signature: %w", err)
	}

	expected := jwt.Expected{Time: time.Now()}
	if v.audience != "" {
		expected.AnyAudience = jwt.Audience{v.audience}
	}
	if err := registered.ValidateWithLeeway(expected, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}
	return claims, nil
}

// extractScopes derives the scope set from either a "scope" claim
// (space-separated string or JSON array) or Keycloak-style
// realm_access.roles / resource_access.<client>.roles.
func extractScopes(claims map[string]any) []string {
	var scopes []string

	switch v := claims["scope"].(type) {
	case string:
		scopes = append(scopes, strings.Fields(v)...)
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}

	if realm, ok := claims["realm_access"].(map[string]any); ok {
		if roles, ok := realm["roles"].([]any); ok {
			for _, r := range roles {
				if str, ok := r.(string); ok {
					scopes = append(scopes, str)
				}
			}
		}
	}

	if resource, ok := claims["resource_access"].(map[string]any); ok {
		for _, v := range resource {
			client, ok := v.(map[string]any)
			if !ok {
				continue
			}
			roles, ok := client["roles"].([]any)
			if !ok {
				continue
			}
			for _, r := range roles {
				if str, ok := r.(string); ok {
					scopes = append(scopes, str)
				}
			}
		}
	}

	return scopes
}

// extractTenant derives the tenant id from a "/tenants/<id>" group
// membership in the "groups" claim.
func extractTenant(claims map[string]any) string {
	groups, ok := claims["groups"].([]any)
	if !ok {
		return ""
	}
	for _, g := range groups {
		name, ok := g.(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(name, tenantGroupPrefix) {
			return strings.TrimPrefix(name, tenantGroupPrefix)
		}
	}
	return ""
}
