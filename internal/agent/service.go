package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/kms"
	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

// Service implements Component B (key material) and the Agent/Key half of
// Component C (DID service): creation, rotation, and DID document assembly.
type Service struct {
	pool   *pgxpool.Pool
	sealer kms.Sealer
	domain string // percent-encoded did:web domain for locally-minted agents
}

// NewService builds an agent Service.
func NewService(pool *pgxpool.Pool, sealer kms.Sealer, domain string) *Service {
	return &Service{pool: pool, sealer: sealer, domain: domain}
}

// CreateAgent creates a new Agent with one initial active key, within a
// single transaction. name is not validated here; the HTTP layer enforces
// the ≤200 char bound.
func (s *Service) CreateAgent(ctx context.Context, tenantID, name string) (Agent, Key, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agent{}, Key{}, apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	store := NewStore(tx)
	if err := store.EnsureTenant(ctx, tenantID); err != nil {
		return Agent{}, Key{}, apierr.Internal("ensuring tenant").WithCause(err)
	}

	agentID := uuid.New()
	did := didweb.AgentDID(s.domain, agentID.String())
	a := Agent{ID: agentID, Name: name, DID: did, TenantID: tenantID, CreatedAt: time.Now().UTC()}
	if err := store.CreateAgent(ctx, a); err != nil {
		return Agent{}, Key{}, apierr.Internal("creating agent").WithCause(err)
	}

	key, err := s.mintKey(ctx, store, agentID, tenantID, did)
	if err != nil {
		return Agent{}, Key{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agent{}, Key{}, apierr.Internal("committing agent creation").WithCause(err)
	}
	return a, key, nil
}

// mintKey generates a fresh Ed25519 key, seals its private half, and
// inserts it as the agent's newest key.
func (s *Service) mintKey(ctx context.Context, store *Store, agentID uuid.UUID, tenantID, did string) (Key, error) {
	kp, err := keymaterial.Generate()
	if err != nil {
		return Key{}, apierr.Internal("generating key pair").WithCause(err)
	}

	sealed, err := s.sealer.Seal(ctx, kp.PrivateKeyPEM)
	if err != nil {
		return Key{}, apierr.Internal("sealing private key").WithCause(err)
	}

	kid, err := store.NewKid(ctx, agentID, did)
	if err != nil {
		return Key{}, apierr.Internal("computing key id").WithCause(err)
	}

	key := Key{
		ID:               uuid.New(),
		AgentID:          agentID,
		TenantID:         tenantID,
		Kid:              kid,
		PublicJWK:        kp.PublicJWK,
		PrivateKeySealed: sealed,
		CreatedAt:        time.Now().UTC(),
		Active:           true,
	}
	if err := store.CreateKey(ctx, key); err != nil {
		return Key{}, apierr.Internal("persisting key").WithCause(err)
	}
	return key, nil
}

// RotateKey deactivates every currently active key for an agent and mints a
// fresh one, all within one transaction.
func (s *Service) RotateKey(ctx context.Context, tenantID string, agentID uuid.UUID) (Key, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Key{}, apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	store := NewStore(tx)
	a, ok, err := store.GetAgent(ctx, tenantID, agentID)
	if err != nil {
		return Key{}, apierr.Internal("fetching agent").WithCause(err)
	}
	if !ok {
		return Key{}, apierr.NotFound("agent %s not found", agentID)
	}

	if _, err := store.DeactivateActiveKeys(ctx, agentID, time.Now().UTC()); err != nil {
		return Key{}, apierr.Internal("deactivating active keys").WithCause(err)
	}

	key, err := s.mintKey(ctx, store, agentID, tenantID, a.DID)
	if err != nil {
		return Key{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Key{}, apierr.Internal("committing key rotation").WithCause(err)
	}
	return key, nil
}

// EnsureStatusIssuer idempotently materializes the process-wide status-list
// issuer agent (did:web:<domain>, no path) and its signing key. Safe to call
// concurrently and repeatedly once both exist. internal/app calls it once at
// boot, before serving, and credential.Service.PublishStatus calls it again
// on every status-list publish.
func (s *Service) EnsureStatusIssuer(ctx context.Context) (Agent, Key, error) {
	did := didweb.StatusIssuerDID(s.domain)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agent{}, Key{}, apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	store := NewStore(tx)
	if err := store.EnsureTenant(ctx, "default"); err != nil {
		return Agent{}, Key{}, apierr.Internal("ensuring tenant").WithCause(err)
	}

	a, ok, err := store.GetAgentByDID(ctx, did)
	if err != nil {
		return Agent{}, Key{}, apierr.Internal("looking up status issuer agent").WithCause(err)
	}
	if !ok {
		a = Agent{ID: uuid.New(), Name: StatusIssuerAgentName, DID: did, TenantID: "default", CreatedAt: time.Now().UTC()}
		if err := store.CreateAgent(ctx, a); err != nil {
			return Agent{}, Key{}, apierr.Internal("creating status issuer agent").WithCause(err)
		}
	}

	key, _, found, err := store.GetSigningKey(ctx, a.ID)
	if err != nil {
		return Agent{}, Key{}, apierr.Internal("fetching status issuer key").WithCause(err)
	}
	if !found {
		key, err = s.mintKey(ctx, store, a.ID, a.TenantID, did)
		if err != nil {
			return Agent{}, Key{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Agent{}, Key{}, apierr.Internal("committing status issuer materialization").WithCause(err)
	}
	return a, key, nil
}

// GetAgent fetches an agent scoped to tenantID. Used by other domain
// services (e.g. credential issuance) that need an agent's DID without
// reaching into agent's internal Store directly.
func (s *Service) GetAgent(ctx context.Context, tenantID string, agentID uuid.UUID) (Agent, bool, error) {
	store := NewStore(s.pool)
	return store.GetAgent(ctx, tenantID, agentID)
}

// DIDDocument assembles the DID document for an agent from all of its keys,
// oldest first.
func (s *Service) DIDDocument(ctx context.Context, a Agent) (didweb.Document, error) {
	store := NewStore(s.pool)
	keys, err := store.ListKeysByAgent(ctx, a.ID)
	if err != nil {
		return didweb.Document{}, fmt.Errorf("listing keys for did document: %w", err)
	}

	refs := make([]didweb.KeyRef, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, didweb.KeyRef{Kid: k.Kid, JWK: k.PublicJWK})
	}
	return didweb.BuildDocument(a.DID, refs), nil
}

// LookupDIDDocument implements didweb.LocalLookup: it resolves a did:web DID
// against the local database without an HTTP round trip.
func (s *Service) LookupDIDDocument(ctx context.Context, did string) (*didweb.Document, bool, error) {
	store := NewStore(s.pool)
	a, ok, err := store.GetAgentByDID(ctx, did)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	doc, err := s.DIDDocument(ctx, a)
	if err != nil {
		return nil, false, err
	}
	return &doc, true, nil
}

// SigningKey returns the active signing key for agentID (newest key as a
// fallback), with the private key already unsealed and ready to sign.
func (s *Service) SigningKey(ctx context.Context, agentID uuid.UUID) (Key, []byte, error) {
	store := NewStore(s.pool)
	key, sealed, found, err := store.GetSigningKey(ctx, agentID)
	if err != nil {
		return Key{}, nil, apierr.Internal("fetching signing key").WithCause(err)
	}
	if !found {
		return Key{}, nil, apierr.NotFound("agent %s has no keys", agentID)
	}

	plaintext, err := s.sealer.Unseal(ctx, sealed)
	if err != nil {
		return Key{}, nil, apierr.Internal("unsealing private key").WithCause(err)
	}
	return key, plaintext, nil
}
