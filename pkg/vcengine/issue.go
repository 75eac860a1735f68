package vcengine

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// IssueResult is Issue's return value.
type IssueResult struct {
	JWT string
	Jti string
	Iat int64
	Exp *int64
}

// Issue signs a Verifiable Credential JWT per §4.E using the issuer's
// EdDSA private key.
func Issue(p IssueParams, privateKey ed25519.PrivateKey) (IssueResult, error) {
	now := time.Now().UTC()

	var status *CredentialStatus
	if p.StatusListURL != "" {
		status = &CredentialStatus{
			ID:                   fmt.Sprintf("%s#%d", p.StatusListURL, p.StatusListIndex),
			Type:                 "BitstringStatusListEntry",
			StatusPurpose:        "revocation",
			StatusListIndex:      strconv.Itoa(p.StatusListIndex),
			StatusListCredential: p.StatusListURL,
		}
	}

	subject := map[string]any{"id": p.SubjectDID}
	for k, v := range p.ExtraClaims {
		subject[k] = v
	}

	vc := VC{
		Context:           []string{vcContext},
		Type:              []string{"VerifiableCredential", p.CredentialType},
		Issuer:            p.IssuerDID,
		ValidFrom:         now.Format(time.RFC3339),
		CredentialSubject: subject,
		CredentialStatus:  status,
	}

	claims := Claims{
		Iss: p.IssuerDID,
		Sub: p.SubjectDID,
		Jti: uuid.New().String(),
		Iat: now.Unix(),
		VC:  vc,
	}
	if p.TTL != nil {
		exp := now.Add(*p.TTL).Unix()
		claims.Exp = &exp
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: privateKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", p.IssuerKid),
	)
	if err != nil {
		return IssueResult{}, fmt.Errorf("creating EdDSA signer: %w", err)
	}

	body, err := json.Marshal(claims)
	if err != nil {
		return IssueResult{}, fmt.Errorf("marshaling claims: %w", err)
	}

	jws, err := signer.Sign(body)
	if err != nil {
		return IssueResult{}, fmt.Errorf("signing credential: %w", err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		return IssueResult{}, fmt.Errorf("serializing credential: %w", err)
	}

	return IssueResult{JWT: raw, Jti: claims.Jti, Iat: claims.Iat, Exp: claims.Exp}, nil
}
