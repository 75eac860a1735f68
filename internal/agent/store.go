package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pramana-labs/pramana/internal/db"
)

// Store persists Agents and Keys, scoped by tenant. It accepts any DBTX so
// callers can run it against a pool or an open transaction.
type Store struct {
	dbtx db.DBTX
}

// NewStore wraps a DBTX (pool or transaction) in an agent Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// EnsureTenant inserts the tenant row if it does not already exist, per
// §4's "created lazily on first use" lifecycle.
func (s *Store) EnsureTenant(ctx context.Context, tenantID string) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO tenants (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, tenantID)
	if err != nil {
		return fmt.Errorf("ensuring tenant %s: %w", tenantID, err)
	}
	return nil
}

// CreateAgent inserts a new Agent row.
func (s *Store) CreateAgent(ctx context.Context, a Agent) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO agents (id, tenant_id, name, did, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.TenantID, a.Name, a.DID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// GetAgent fetches an Agent by id scoped to tenantID. Returns (Agent{}, false, nil) if absent.
func (s *Store) GetAgent(ctx context.Context, tenantID string, id uuid.UUID) (Agent, bool, error) {
	var a Agent
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, name, did, created_at FROM agents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&a.ID, &a.TenantID, &a.Name, &a.DID, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Agent{}, false, nil
		}
		return Agent{}, false, fmt.Errorf("fetching agent %s: %w", id, err)
	}
	return a, true, nil
}

// GetAgentByDID fetches an Agent by its DID, regardless of tenant. Used by
// the local DID resolution shortcut, which must work across tenants since a
// DID alone carries no tenant context.
func (s *Store) GetAgentByDID(ctx context.Context, did string) (Agent, bool, error) {
	var a Agent
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, name, did, created_at FROM agents WHERE did = $1`, did,
	).Scan(&a.ID, &a.TenantID, &a.Name, &a.DID, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Agent{}, false, nil
		}
		return Agent{}, false, fmt.Errorf("fetching agent by did %s: %w", did, err)
	}
	return a, true, nil
}

// CreateKey inserts a new Key row.
func (s *Store) CreateKey(ctx context.Context, k Key) error {
	jwk, err := json.Marshal(k.PublicJWK)
	if err != nil {
		return fmt.Errorf("marshaling public jwk: %w", err)
	}
	_, err = s.dbtx.Exec(ctx,
		`INSERT INTO keys (id, agent_id, tenant_id, kid, public_jwk, private_key_sealed, created_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		k.ID, k.AgentID, k.TenantID, k.Kid, jwk, k.PrivateKeySealed, k.CreatedAt, k.Active)
	if err != nil {
		return fmt.Errorf("inserting key: %w", err)
	}
	return nil
}

// DeactivateActiveKeys flips active=false and stamps rotated_at on every
// currently active key for agentID. Returns the number of keys deactivated.
func (s *Store) DeactivateActiveKeys(ctx context.Context, agentID uuid.UUID, rotatedAt time.Time) (int, error) {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE keys SET active = false, rotated_at = $2 WHERE agent_id = $1 AND active`,
		agentID, rotatedAt)
	if err != nil {
		return 0, fmt.Errorf("deactivating active keys for agent %s: %w", agentID, err)
	}
	return int(tag.RowsAffected()), nil
}

// ListKeysByAgent returns every key for an agent, oldest first — the order
// DID document assembly and kid-ordinal computation both rely on.
func (s *Store) ListKeysByAgent(ctx context.Context, agentID uuid.UUID) ([]Key, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT id, agent_id, tenant_id, kid, public_jwk, created_at, rotated_at, active
		 FROM keys WHERE agent_id = $1 ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing keys for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		var jwkRaw []byte
		if err := rows.Scan(&k.ID, &k.AgentID, &k.TenantID, &k.Kid, &jwkRaw, &k.CreatedAt, &k.RotatedAt, &k.Active); err != nil {
			return nil, fmt.Errorf("scanning key row: %w", err)
		}
		if err := json.Unmarshal(jwkRaw, &k.PublicJWK); err != nil {
			return nil, fmt.Errorf("unmarshaling public jwk: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetSigningKey selects the key to sign with for agentID: the single active
// key, or (if none is active) the newest key by created_at.
func (s *Store) GetSigningKey(ctx context.Context, agentID uuid.UUID) (Key, []byte, bool, error) {
	var k Key
	var jwkRaw []byte
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, agent_id, tenant_id, kid, public_jwk, private_key_sealed, created_at, rotated_at, active
		 FROM keys WHERE agent_id = $1
		 ORDER BY active DESC, created_at DESC LIMIT 1`, agentID,
	).Scan(&k.ID, &k.AgentID, &k.TenantID, &k.Kid, &jwkRaw, &k.PrivateKeySealed, &k.CreatedAt, &k.RotatedAt, &k.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Key{}, nil, false, nil
		}
		return Key{}, nil, false, fmt.Errorf("fetching signing key for agent %s: %w", agentID, err)
	}
	if err := json.Unmarshal(jwkRaw, &k.PublicJWK); err != nil {
		return Key{}, nil, false, fmt.Errorf("unmarshaling public jwk: %w", err)
	}
	return k, k.PrivateKeySealed, true, nil
}

// nextKidOrdinal returns the 1-based ordinal for the next key of an agent,
// i.e. len(existing keys) + 1, matching "<did>#key-<n>".
func (s *Store) nextKidOrdinal(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM keys WHERE agent_id = $1`, agentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting keys for agent %s: %w", agentID, err)
	}
	return count + 1, nil
}

// NewKid builds the next kid for an agent: "<did>#key-<n>".
func (s *Store) NewKid(ctx context.Context, agentID uuid.UUID, did string) (string, error) {
	n, err := s.nextKidOrdinal(ctx, agentID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s#key-%d", did, n), nil
}
