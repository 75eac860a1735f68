package credential

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pramana-labs/pramana/internal/db"
)

// Store persists Credentials.
type Store struct {
	dbtx db.DBTX
}

// NewStore wraps a DBTX (pool or transaction) in a credential Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// Create inserts a new Credential row. Callers issuing a credential must run
// this in the same transaction that holds the status-list row lock from
// AllocateIndex, per §5.
func (s *Store) Create(ctx context.Context, c Credential) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO credentials
			(id, tenant_id, issuer_agent_id, subject_did, credential_type, jti, jwt,
			 status_list_id, status_list_index, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.TenantID, c.IssuerAgentID, c.SubjectDID, c.CredentialType, c.Jti, c.JWT,
		c.StatusListID, c.StatusListIndex, c.IssuedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// Get fetches a Credential by id, scoped to tenant.
func (s *Store) Get(ctx context.Context, tenantID string, id uuid.UUID) (Credential, bool, error) {
	var c Credential
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, issuer_agent_id, subject_did, credential_type, jti, jwt,
		        status_list_id, status_list_index, issued_at, expires_at
		 FROM credentials WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.IssuerAgentID, &c.SubjectDID, &c.CredentialType, &c.Jti, &c.JWT,
		&c.StatusListID, &c.StatusListIndex, &c.IssuedAt, &c.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("fetching credential %s: %w", id, err)
	}
	return c, true, nil
}
