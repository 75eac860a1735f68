package credential

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramana-labs/pramana/internal/agent"
	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/kms"
	"github.com/pramana-labs/pramana/internal/telemetry"
	"github.com/pramana-labs/pramana/pkg/bitstring"
	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
	"github.com/pramana-labs/pramana/pkg/statuslist"
	"github.com/pramana-labs/pramana/pkg/vcengine"
)

// IssueParams bundles Service.Issue's inputs.
type IssueParams struct {
	IssuerAgentID  uuid.UUID
	SubjectDID     string
	CredentialType string
	TTL            *time.Duration
	ExtraClaims    map[string]any
}

// Service implements credential issuance, revocation, and verification —
// wiring Components B (keys), C (DID), D (status lists), and E (VC engine)
// together behind the tenant boundary.
type Service struct {
	pool     *pgxpool.Pool
	agentSvc *agent.Service
	sealer   kms.Sealer
	resolver *didweb.Resolver
	domain   string
	scheme   string // "https" in production, "http" for local dev
}

// NewService builds a credential Service. resolver must be built over the
// same agentSvc so local DIDs resolve without an HTTP round trip.
func NewService(pool *pgxpool.Pool, agentSvc *agent.Service, sealer kms.Sealer, resolver *didweb.Resolver, domain, scheme string) *Service {
	return &Service{pool: pool, agentSvc: agentSvc, sealer: sealer, resolver: resolver, domain: domain, scheme: scheme}
}

func (s *Service) statusListURL(listID uuid.UUID) string {
	return fmt.Sprintf("%s://%s/v1/status/%s", s.scheme, s.domain, listID)
}

// StatusListURL exposes the canonical public URL for a status list, for
// callers (e.g. the requirement-intent engine) that need to report it
// without re-deriving the scheme/domain convention themselves.
func (s *Service) StatusListURL(listID uuid.UUID) string {
	return s.statusListURL(listID)
}

// Issue mints a credential for params.SubjectDID under the tenant's issuer
// agent, allocating a status-list index and inserting the Credential row in
// the same transaction that holds the status-list row lock, per §5.
func (s *Service) Issue(ctx context.Context, tenantID string, p IssueParams) (Credential, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Credential{}, apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	agentStore := agent.NewStore(tx)
	a, ok, err := agentStore.GetAgent(ctx, tenantID, p.IssuerAgentID)
	if err != nil {
		return Credential{}, apierr.Internal("fetching issuer agent").WithCause(err)
	}
	if !ok {
		return Credential{}, apierr.NotFound("agent %s not found", p.IssuerAgentID)
	}

	key, sealed, found, err := agentStore.GetSigningKey(ctx, a.ID)
	if err != nil {
		return Credential{}, apierr.Internal("fetching issuer signing key").WithCause(err)
	}
	if !found {
		return Credential{}, apierr.ValidationError("issuer agent %s has no signing key", a.ID)
	}
	plaintext, err := s.sealer.Unseal(ctx, sealed)
	if err != nil {
		return Credential{}, apierr.Internal("unsealing issuer private key").WithCause(err)
	}
	priv, err := keymaterial.PrivateKeyFromPEM(plaintext)
	if err != nil {
		return Credential{}, apierr.Internal("decoding issuer private key").WithCause(err)
	}

	statusStore := statuslist.NewStore(tx)
	listID, index, err := statusStore.AllocateIndex(ctx, tenantID)
	if err != nil {
		return Credential{}, err
	}
	statusListURL := s.statusListURL(listID)

	issued, err := vcengine.Issue(vcengine.IssueParams{
		IssuerDID:       a.DID,
		IssuerKid:       key.Kid,
		SubjectDID:      p.SubjectDID,
		CredentialType:  p.CredentialType,
		StatusListURL:   statusListURL,
		StatusListIndex: index,
		TTL:             p.TTL,
		ExtraClaims:     p.ExtraClaims,
	}, priv)
	if err != nil {
		return Credential{}, apierr.Internal("issuing credential").WithCause(err)
	}

	cred := Credential{
		ID:              uuid.New(),
		TenantID:        tenantID,
		IssuerAgentID:   a.ID,
		SubjectDID:      p.SubjectDID,
		CredentialType:  p.CredentialType,
		Jti:             issued.Jti,
		JWT:             issued.JWT,
		StatusListID:    listID,
		StatusListIndex: index,
		IssuedAt:        time.Unix(issued.Iat, 0).UTC(),
	}
	if issued.Exp != nil {
		exp := time.Unix(*issued.Exp, 0).UTC()
		cred.ExpiresAt = &exp
	}

	credStore := NewStore(tx)
	if err := credStore.Create(ctx, cred); err != nil {
		return Credential{}, apierr.Internal("persisting credential").WithCause(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Credential{}, apierr.Internal("committing credential issuance").WithCause(err)
	}

	telemetry.CredentialsIssuedTotal.WithLabelValues(p.CredentialType).Inc()
	return cred, nil
}

// Revoke sets the revoked bit for a credential's status-list index.
func (s *Service) Revoke(ctx context.Context, tenantID string, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	credStore := NewStore(tx)
	cred, ok, err := credStore.Get(ctx, tenantID, id)
	if err != nil {
		return apierr.Internal("fetching credential").WithCause(err)
	}
	if !ok {
		return apierr.NotFound("credential %s not found", id)
	}

	statusStore := statuslist.NewStore(tx)
	if err := statusStore.Revoke(ctx, cred.StatusListID, cred.StatusListIndex); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apierr.Internal("committing revocation").WithCause(err)
	}

	telemetry.CredentialsRevokedTotal.Inc()
	return nil
}

// Verify resolves jwt's issuer DID, verifies its EdDSA signature, and checks
// the embedded status-list reference against the local database. Fails
// closed: any error means the credential must be treated as unverified.
func (s *Service) Verify(ctx context.Context, jwt string) (vcengine.VerifyResult, error) {
	result, err := vcengine.Verify(ctx, jwt, s.resolver, s.checkStatus)
	if err != nil {
		telemetry.CredentialsVerifiedTotal.WithLabelValues("invalid").Inc()
		return vcengine.VerifyResult{}, apierr.ValidationError("credential verification failed: %v", err)
	}

	outcome := "verified"
	if result.Status.Present && result.Status.Revoked {
		outcome = "revoked"
	}
	telemetry.CredentialsVerifiedTotal.WithLabelValues(outcome).Inc()
	return result, nil
}

func (s *Service) checkStatus(ctx context.Context, statusListURL string, index int) (bool, error) {
	listID, err := parseListID(statusListURL)
	if err != nil {
		return false, apierr.ResolutionError("resolving status list reference: %v", err)
	}

	statusStore := statuslist.NewStore(s.pool)
	revoked, err := statusStore.IsRevoked(ctx, listID, index)
	if err != nil {
		return false, apierr.ResolutionError("checking status list: %v", err)
	}
	return revoked, nil
}

// parseListID extracts the status-list id from the trailing path segment of
// a status-list URL, e.g. ".../v1/status/<id>" → <id>.
func parseListID(statusListURL string) (uuid.UUID, error) {
	trimmed := strings.TrimRight(statusListURL, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return uuid.Nil, fmt.Errorf("malformed status list url %q", statusListURL)
	}
	return uuid.Parse(trimmed[idx+1:])
}

// PublishStatus signs and returns the compact VC-JWT envelope for a status
// list, using the process-wide status-list issuer agent's key. Status lists
// are addressed by id alone — the endpoint is public, so there is no
// authenticated tenant to scope by.
func (s *Service) PublishStatus(ctx context.Context, listID uuid.UUID) (string, map[string]any, error) {
	statusStore := statuslist.NewStore(s.pool)
	l, ok, err := statusStore.GetByID(ctx, listID)
	if err != nil {
		return "", nil, apierr.Internal("fetching status list").WithCause(err)
	}
	if !ok {
		return "", nil, apierr.NotFound("status list %s not found", listID)
	}

	issuer, key, err := s.agentSvc.EnsureStatusIssuer(ctx)
	if err != nil {
		return "", nil, err
	}
	_, plaintext, err := s.agentSvc.SigningKey(ctx, issuer.ID)
	if err != nil {
		return "", nil, err
	}
	priv, err := keymaterial.PrivateKeyFromPEM(plaintext)
	if err != nil {
		return "", nil, apierr.Internal("decoding status issuer private key").WithCause(err)
	}

	return statuslist.Publish(l, issuer.DID, key.Kid, priv, s.statusListURL(listID))
}

// RawStatus returns the gzip+base64url-encoded bitstring for a status list,
// unsigned — the "raw" §6 format. Like PublishStatus, addressed by id alone.
func (s *Service) RawStatus(ctx context.Context, listID uuid.UUID) (string, error) {
	statusStore := statuslist.NewStore(s.pool)
	l, ok, err := statusStore.GetByID(ctx, listID)
	if err != nil {
		return "", apierr.Internal("fetching status list").WithCause(err)
	}
	if !ok {
		return "", apierr.NotFound("status list %s not found", listID)
	}
	gz, err := bitstring.Gzip(l.Bitstring)
	if err != nil {
		return "", apierr.Internal("compressing status list").WithCause(err)
	}
	return bitstring.B64URL(gz), nil
}
