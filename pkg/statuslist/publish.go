package statuslist

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/pramana-labs/pramana/pkg/bitstring"
)

const (
	statusListVCContext  = "https://www.w3.org/ns/credentials/v2"
	statusListVCContext2 = "https://www.w3.org/ns/credentials/status/v1"
)

// envelopePayload is the JWT payload wrapping the status list VC.
type envelopePayload struct {
	Iss string         `json:"iss"`
	Sub string         `json:"sub"`
	Jti string         `json:"jti"`
	Iat int64          `json:"iat"`
	VC  map[string]any `json:"vc"`
}

// Publish compresses l's bitstring and signs a VC-JWT envelope around it
// with the status-list issuer's EdDSA key, per §4.D.
func Publish(l List, issuerDID, issuerKid string, privateKey ed25519.PrivateKey, listURL string) (string, map[string]any, error) {
	gz, err := bitstring.Gzip(l.Bitstring)
	if err != nil {
		return "", nil, fmt.Errorf("compressing bitstring: %w", err)
	}
	encodedList := bitstring.B64URL(gz)

	now := time.Now().UTC()
	vc := map[string]any{
		"@context": []string{statusListVCContext, statusListVCContext2},
		"type":     []string{"VerifiableCredential", "BitstringStatusListCredential"},
		"id":       listURL,
		"issuer":   issuerDID,
		"validFrom": now.Format(time.RFC3339),
		"credentialSubject": map[string]any{
			"id":            listURL + "#list",
			"type":          "BitstringStatusList",
			"statusPurpose": l.Purpose,
			"encodedList":   encodedList,
		},
	}

	payload := envelopePayload{
		Iss: issuerDID,
		Sub: listURL + "#list",
		Jti: uuid.New().String(),
		Iat: now.Unix(),
		VC:  vc,
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", issuerKid),
	)
	if err != nil {
		return "", nil, fmt.Errorf("creating EdDSA signer: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling payload: %w", err)
	}

	jws, err := signer.Sign(body)
	if err != nil {
		return "", nil, fmt.Errorf("signing status list envelope: %w", err)
	}

	raw, err := jws.CompactSerialize()
	if err != nil {
		return "", nil, fmt.Errorf("serializing status list envelope: %w", err)
	}

	return raw, vc, nil
}
