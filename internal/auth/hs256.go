package auth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// internalClaims is the custom claim set carried by internally issued
// tokens, alongside the registered jwt.Claims (iss, sub, iat, exp).
type internalClaims struct {
	Scope  []string `json:"scope"`
	Tenant string   `json:"tenant"`
}

// HS256Issuer issues and verifies internal bearer tokens signed with a
// shared HMAC secret, per §6/§10's "internal mode issues HS256 tokens".
type HS256Issuer struct {
	signingKey []byte
	issuer     string
}

// NewHS256Issuer builds an issuer. secret must be at least 32 bytes.
func NewHS256Issuer(secret, issuer string) (*HS256Issuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth: HS256 secret must be at least 32 bytes, got %d", len(secret))
	}
	return &HS256Issuer{signingKey: []byte(secret), issuer: issuer}, nil
}

// Issue mints a token for subject, scoped to scopes and tenantID, valid for ttl.
func (i *HS256Issuer) Issue(subject string, scopes []string, tenantID string, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: i.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating HS256 signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:  subject,
		Issuer:   i.issuer,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	custom := internalClaims{Scope: scopes, Tenant: tenantID}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing HS256 token: %w", err)
	}
	return token, nil
}

// Verify validates an HS256 token's signature, issuer, and expiry and
// returns the Identity it carries.
func (i *HS256Issuer) Verify(raw string) (*Identity, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom internalClaims
	if err := tok.Claims(i.signingKey, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token signature: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: i.issuer,
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &Identity{
		Subject:  registered.Subject,
		TenantID: custom.Tenant,
		Scopes:   custom.Scope,
		Method:   MethodHS256,
	}, nil
}
