// Package vcengine implements Component E: issuing and verifying
// EdDSA-signed Verifiable Credential JWTs with an embedded status-list
// reference.
package vcengine

import "time"

const vcContext = "https://www.w3.org/ns/credentials/v2"

// CredentialStatus is the embedded BitstringStatusListEntry reference.
type CredentialStatus struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose"`
	StatusListIndex      string `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

// VC is the decoded credential payload embedded under the "vc" claim.
type VC struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	ValidFrom         string            `json:"validFrom"`
	CredentialSubject map[string]any    `json:"credentialSubject"`
	CredentialStatus  *CredentialStatus `json:"credentialStatus,omitempty"`
}

// Claims is the full JWT payload signed over by Issue.
type Claims struct {
	Iss string `json:"iss"`
	Sub string `json:"sub"`
	Jti string `json:"jti"`
	Iat int64  `json:"iat"`
	Exp *int64 `json:"exp,omitempty"`
	VC  VC     `json:"vc"`
}

// IssueParams bundles Issue's inputs. The caller is responsible for loading
// the issuer's active key and unsealing its private material — Issue only
// signs.
type IssueParams struct {
	IssuerDID       string
	IssuerKid       string
	SubjectDID      string
	CredentialType  string
	StatusListURL   string
	StatusListIndex int
	TTL             *time.Duration
	ExtraClaims     map[string]any
}

// StatusResult is Verify's report on an embedded status-list reference.
type StatusResult struct {
	Present bool
	Revoked bool
}

// VerifyResult is Verify's full outcome.
type VerifyResult struct {
	Claims Claims
	Status StatusResult
}
