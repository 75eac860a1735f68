package statuslist

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/pramana-labs/pramana/pkg/bitstring"
	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

// Resolver resolves a did:web DID to its document, either locally or over
// HTTPS. *didweb.Resolver satisfies this.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*didweb.Document, error)
}

// VerifyAndExtract parses a published status-list envelope, resolves its
// issuer DID, verifies the EdDSA signature, and returns the decompressed
// raw bitstring alongside the decoded payload, per §4.D.
func VerifyAndExtract(ctx context.Context, resolver Resolver, raw string) (bits []byte, payload map[string]any, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("malformed compact JWS: expected 3 segments, got %d", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("decoding header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Alg != "EdDSA" {
		return nil, nil, fmt.Errorf("unsupported algorithm %q: only EdDSA is accepted", header.Alg)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("decoding payload: %w", err)
	}
	var unverified struct {
		Iss string `json:"iss"`
	}
	if err := json.Unmarshal(payloadJSON, &unverified); err != nil {
		return nil, nil, fmt.Errorf("parsing payload: %w", err)
	}
	if unverified.Iss == "" {
		return nil, nil, fmt.Errorf("payload missing iss claim")
	}

	doc, err := resolver.Resolve(ctx, unverified.Iss)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving issuer %s: %w", unverified.Iss, err)
	}
	vm, err := didweb.SelectVerificationMethod(doc, header.Kid)
	if err != nil {
		return nil, nil, fmt.Errorf("selecting verification method: %w", err)
	}
	pub, err := keymaterial.PublicKeyFromJWK(vm.PublicKeyJWK)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding issuer public key: %w", err)
	}

	jws, err := jose.ParseSigned(raw, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, nil, fmt.Errorf("parsing signed envelope: %w", err)
	}
	verifiedPayload, err := jws.Verify(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying signature: %w", err)
	}

	var full map[string]any
	if err := json.Unmarshal(verifiedPayload, &full); err != nil {
		return nil, nil, fmt.Errorf("parsing verified payload: %w", err)
	}

	vc, ok := full["vc"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("payload missing vc claim")
	}
	subject, ok := vc["credentialSubject"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("vc missing credentialSubject")
	}
	encoded, ok := subject["encodedList"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("credentialSubject missing encodedList")
	}

	gz, err := bitstring.B64URLDecode(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding encodedList: %w", err)
	}
	bits, err = bitstring.Gunzip(gz)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing encodedList: %w", err)
	}

	return bits, full, nil
}
