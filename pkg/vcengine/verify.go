package vcengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

// DIDResolver resolves a did:web DID to its document.
type DIDResolver interface {
	Resolve(ctx context.Context, did string) (*didweb.Document, error)
}

// StatusChecker reports whether the entry at index in the status list
// identified by statusListCredential is revoked.
type StatusChecker func(ctx context.Context, statusListCredential string, index int) (bool, error)

// Verify parses, resolves, and verifies a credential JWT per §4.E. Any
// error means the credential must be treated as unverified — callers must
// never report a verified result alongside a non-nil error.
func Verify(ctx context.Context, jwt string, resolver DIDResolver, checkStatus StatusChecker) (VerifyResult, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return VerifyResult{}, fmt.Errorf("malformed compact JWS: expected 3 segments, got %d", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return VerifyResult{}, fmt.Errorf("decoding header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return VerifyResult{}, fmt.Errorf("parsing header: %w", err)
	}
	if header.Alg != "EdDSA" {
		return VerifyResult{}, fmt.Errorf("unsupported algorithm %q: only EdDSA is accepted", header.Alg)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return VerifyResult{}, fmt.Errorf("decoding payload: %w", err)
	}
	var unverified struct {
		Iss string `json:"iss"`
	}
	if err := json.Unmarshal(payloadJSON, &unverified); err != nil {
		return VerifyResult{}, fmt.Errorf("parsing payload: %w", err)
	}
	if unverified.Iss == "" {
		return VerifyResult{}, fmt.Errorf("payload missing iss claim")
	}

	doc, err := resolver.Resolve(ctx, unverified.Iss)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("resolving issuer %s: %w", unverified.Iss, err)
	}
	vm, err := didweb.SelectVerificationMethod(doc, header.Kid)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("selecting verification method: %w", err)
	}
	pub, err := keymaterial.PublicKeyFromJWK(vm.PublicKeyJWK)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("decoding issuer public key: %w", err)
	}

	jws, err := jose.ParseSigned(jwt, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("parsing signed credential: %w", err)
	}
	verifiedPayload, err := jws.Verify(pub)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verifying signature: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(verifiedPayload, &claims); err != nil {
		return VerifyResult{}, fmt.Errorf("parsing verified claims: %w", err)
	}
	if claims.Iss == "" || claims.Sub == "" || claims.Jti == "" || claims.Iat == 0 {
		return VerifyResult{}, fmt.Errorf("credential missing required claim among iss, sub, iat, jti")
	}

	if claims.VC.CredentialStatus == nil {
		return VerifyResult{Claims: claims, Status: StatusResult{Present: false}}, nil
	}

	index, err := strconv.Atoi(claims.VC.CredentialStatus.StatusListIndex)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("parsing statusListIndex: %w", err)
	}
	revoked, err := checkStatus(ctx, claims.VC.CredentialStatus.StatusListCredential, index)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("checking status list: %w", err)
	}

	return VerifyResult{Claims: claims, Status: StatusResult{Present: true, Revoked: revoked}}, nil
}
