// Command pramana-verify is a portable, database-free verifier for a
// pramana-issued VC-JWT: it resolves the issuer's did:web document and any
// referenced status list purely over HTTPS, the way a third party holding
// only the JWT would, rather than trusting the issuing service to
// self-report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/statuslist"
	"github.com/pramana-labs/pramana/pkg/vcengine"
)

const fetchTimeout = 10 * time.Second

// verdict is the JSON shape printed to stdout.
type verdict struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	jwt := flag.String("jwt", "", "the VC-JWT to verify")
	scheme := flag.String("scheme", "https", "scheme used to resolve did:web documents and status lists")
	flag.Parse()

	if *jwt == "" {
		fmt.Fprintln(os.Stderr, "usage: pramana-verify -jwt <vc-jwt> [-scheme https]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	v := run(ctx, *jwt, *scheme)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)

	if !v.Verified {
		os.Exit(1)
	}
}

func run(ctx context.Context, jwt, scheme string) verdict {
	// No LocalLookup: every DID, including the verifier's own, resolves over
	// HTTPS. LocalDomain is left empty so it never matches a real domain.
	resolver := didweb.NewResolver("", scheme, nil)
	client := &http.Client{Timeout: fetchTimeout}

	result, err := vcengine.Verify(ctx, jwt, resolver, httpStatusChecker(client, resolver))
	if err != nil {
		return verdict{Verified: false, Reason: "verification_failed", Error: err.Error()}
	}
	if result.Status.Present && result.Status.Revoked {
		return verdict{Verified: false, Reason: "revoked", Issuer: result.Claims.Iss, Subject: result.Claims.Sub}
	}
	return verdict{Verified: true, Issuer: result.Claims.Iss, Subject: result.Claims.Sub}
}

// httpStatusChecker fetches the status-list envelope over HTTPS and checks
// the bit at index; it is the HTTPS counterpart of
// internal/credential.Service.checkStatus, which reads the bit from the
// local database.
func httpStatusChecker(client *http.Client, resolver *didweb.Resolver) vcengine.StatusChecker {
	return func(ctx context.Context, statusListCredential string, index int) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListCredential, nil)
		if err != nil {
			return false, fmt.Errorf("building status list request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return false, fmt.Errorf("fetching status list %s: %w", statusListCredential, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return false, fmt.Errorf("status list fetch from %s returned status %d", statusListCredential, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("reading status list response: %w", err)
		}

		bits, _, err := statuslist.VerifyAndExtract(ctx, resolver, string(body))
		if err != nil {
			return false, fmt.Errorf("verifying status list envelope: %w", err)
		}

		return statuslist.IsRevoked(bits, index), nil
	}
}
