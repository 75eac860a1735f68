package didweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// resolveTimeout bounds every remote DID fetch, per the 10-second external
// call budget.
const resolveTimeout = 10 * time.Second

// LocalLookup resolves a did:web DID whose domain matches this service's own
// configured domain without going over HTTP.
type LocalLookup interface {
	LookupDIDDocument(ctx context.Context, did string) (*Document, bool, error)
}

// Resolver resolves a did:web DID to its document, using the local database
// shortcut when the DID's domain is this service's own domain, and an
// HTTPS GET otherwise.
type Resolver struct {
	LocalDomain string
	Scheme      string
	Local       LocalLookup
	HTTPClient  *http.Client
}

// NewResolver builds a Resolver with a bounded-timeout HTTP client.
func NewResolver(localDomain, scheme string, local LocalLookup) *Resolver {
	return &Resolver{
		LocalDomain: localDomain,
		Scheme:      scheme,
		Local:       local,
		HTTPClient:  &http.Client{Timeout: resolveTimeout},
	}
}

// Resolve returns the DID document for did, preferring the local shortcut.
func (r *Resolver) Resolve(ctx context.Context, did string) (*Document, error) {
	domain, err := Domain(did)
	if err != nil {
		return nil, err
	}

	// Domain returns the decoded host (e.g. "localhost:8080") while
	// LocalDomain is configured percent-encoded, so decode it before comparing.
	localDomain, err := decodeSegment(r.LocalDomain)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(domain, localDomain) {
		doc, ok, err := r.Local.LookupDIDDocument(ctx, did)
		if err != nil {
			return nil, fmt.Errorf("resolving local did %s: %w", did, err)
		}
		if ok {
			return doc, nil
		}
		return nil, fmt.Errorf("did not found: %s", did)
	}

	return r.resolveRemote(ctx, did)
}

func (r *Resolver) resolveRemote(ctx context.Context, did string) (*Document, error) {
	target, err := ResolutionURL(r.Scheme, did)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building did resolution request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching did document from %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("did document fetch from %s returned status %d", target, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding did document from %s: %w", target, err)
	}
	return &doc, nil
}

// SelectVerificationMethod picks the verification method matching kid,
// falling back to the first entry if no kid match is found, per the
// fallback rule shared by VC and status-list verification.
func SelectVerificationMethod(doc *Document, kid string) (*VerificationMethod, error) {
	if len(doc.VerificationMethod) == 0 {
		return nil, fmt.Errorf("did document %s has no verification methods", doc.ID)
	}
	for i := range doc.VerificationMethod {
		if doc.VerificationMethod[i].ID == kid {
			return &doc.VerificationMethod[i], nil
		}
	}
	return &doc.VerificationMethod[0], nil
}
