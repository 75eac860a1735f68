// Package didweb implements the did:web method: building identifiers and DID
// documents, and resolving a DID to a document either via a local database
// shortcut or an HTTPS fetch of the well-known document.
package didweb

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

const didContext = "https://www.w3.org/ns/did/v1"

// KeyRef is the minimal view of a Key needed to build a verification method.
type KeyRef struct {
	Kid string
	JWK keymaterial.JWK
}

// VerificationMethod is one entry in a DID document's verificationMethod array.
type VerificationMethod struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Controller   string          `json:"controller"`
	PublicKeyJWK keymaterial.JWK `json:"publicKeyJwk"`
}

// Document is a did:web DID document.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
}

// AgentDID builds the did:web identifier for an agent: did:web:<domain>:agents:<agentID>.
// domain must already be percent-encoded (e.g. "localhost%3A8000").
func AgentDID(domain, agentID string) string {
	return fmt.Sprintf("did:web:%s:agents:%s", domain, agentID)
}

// StatusIssuerDID builds the did:web identifier for the process-wide status
// list issuer agent: did:web:<domain>, with no path segments.
func StatusIssuerDID(domain string) string {
	return fmt.Sprintf("did:web:%s", domain)
}

// BuildDocument assembles a DID document referencing one verification method
// per key, in the order given. Every key contributes to both the
// authentication and assertionMethod arrays.
func BuildDocument(did string, keys []KeyRef) Document {
	doc := Document{
		Context: []string{didContext},
		ID:      did,
	}
	for _, k := range keys {
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:           k.Kid,
			Type:         "JsonWebKey2020",
			Controller:   did,
			PublicKeyJWK: k.JWK,
		})
		doc.Authentication = append(doc.Authentication, k.Kid)
		doc.AssertionMethod = append(doc.AssertionMethod, k.Kid)
	}
	return doc
}

// Domain extracts and percent-decodes the domain segment of a did:web DID.
func Domain(did string) (string, error) {
	parts := strings.Split(did, ":")
	if len(parts) < 3 || parts[0] != "did" || parts[1] != "web" {
		return "", fmt.Errorf("not a did:web identifier: %q", did)
	}
	return decodeSegment(parts[2])
}

// ResolutionURL computes the HTTPS URL a did:web DID resolves to.
// Three colon-separated segments (did:web:<domain>) resolve to the
// well-known document; more segments resolve to a path-scoped document.
func ResolutionURL(scheme, did string) (string, error) {
	parts := strings.Split(did, ":")
	if len(parts) < 3 || parts[0] != "did" || parts[1] != "web" {
		return "", fmt.Errorf("not a did:web identifier: %q", did)
	}

	domain, err := decodeSegment(parts[2])
	if err != nil {
		return "", err
	}

	if len(parts) == 3 {
		return fmt.Sprintf("%s://%s/.well-known/did.json", scheme, domain), nil
	}

	segments := make([]string, 0, len(parts)-3)
	for _, p := range parts[3:] {
		seg, err := decodeSegment(p)
		if err != nil {
			return "", err
		}
		segments = append(segments, seg)
	}
	return fmt.Sprintf("%s://%s/%s/did.json", scheme, domain, strings.Join(segments, "/")), nil
}

func decodeSegment(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("percent-decoding %q: %w", s, err)
	}
	return decoded, nil
}
