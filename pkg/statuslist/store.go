package statuslist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/db"
	"github.com/pramana-labs/pramana/internal/telemetry"
)

// Store persists status lists. Methods that read-modify-write the bitstring
// must be called with a DBTX that is an open transaction (pgx.Tx), since
// they rely on SELECT ... FOR UPDATE to serialize concurrent mutation —
// see §5's concurrency model.
type Store struct {
	dbtx db.DBTX
}

// NewStore wraps a DBTX in a statuslist Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// EnsureList returns the tenant's default revocation list, creating it
// (all-zero bitstring) on first demand.
func (s *Store) EnsureList(ctx context.Context, tenantID string) (List, error) {
	l, ok, err := s.getByTenantPurpose(ctx, tenantID, DefaultPurpose)
	if err != nil {
		return List{}, err
	}
	if ok {
		return l, nil
	}

	l = List{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Purpose:   DefaultPurpose,
		Size:      DefaultSize,
		Bitstring: make([]byte, DefaultSize/8),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.dbtx.Exec(ctx,
		`INSERT INTO status_lists (id, tenant_id, purpose, size, bitstring, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		l.ID, l.TenantID, l.Purpose, l.Size, l.Bitstring, l.UpdatedAt)
	if err != nil {
		return List{}, fmt.Errorf("creating status list: %w", err)
	}

	// Another request may have raced us; re-read to get the canonical row.
	l, ok, err = s.getByTenantPurpose(ctx, tenantID, DefaultPurpose)
	if err != nil {
		return List{}, err
	}
	if !ok {
		return List{}, fmt.Errorf("status list missing immediately after creation")
	}
	return l, nil
}

func (s *Store) getByTenantPurpose(ctx context.Context, tenantID, purpose string) (List, bool, error) {
	var l List
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, purpose, size, bitstring, updated_at
		 FROM status_lists WHERE tenant_id = $1 AND purpose = $2
		 ORDER BY updated_at ASC LIMIT 1`,
		tenantID, purpose,
	).Scan(&l.ID, &l.TenantID, &l.Purpose, &l.Size, &l.Bitstring, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return List{}, false, nil
		}
		return List{}, false, fmt.Errorf("fetching status list: %w", err)
	}
	return l, true, nil
}

// Get fetches a list by id, scoped to tenant.
func (s *Store) Get(ctx context.Context, tenantID string, id uuid.UUID) (List, bool, error) {
	var l List
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, purpose, size, bitstring, updated_at
		 FROM status_lists WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&l.ID, &l.TenantID, &l.Purpose, &l.Size, &l.Bitstring, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return List{}, false, nil
		}
		return List{}, false, fmt.Errorf("fetching status list %s: %w", id, err)
	}
	return l, true, nil
}

// GetByID fetches a list by id alone, with no tenant scoping — used by the
// public status endpoint, where the list id in the URL carries no tenant
// context and is itself the only access key a caller has.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (List, bool, error) {
	var l List
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, purpose, size, bitstring, updated_at
		 FROM status_lists WHERE id = $1`, id,
	).Scan(&l.ID, &l.TenantID, &l.Purpose, &l.Size, &l.Bitstring, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return List{}, false, nil
		}
		return List{}, false, fmt.Errorf("fetching status list %s: %w", id, err)
	}
	return l, true, nil
}

// lockForUpdate reads a list's bitstring under SELECT ... FOR UPDATE. The
// caller's dbtx must be an open transaction; the row lock is held until
// that transaction commits or rolls back.
func (s *Store) lockForUpdate(ctx context.Context, listID uuid.UUID) (List, error) {
	var l List
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, tenant_id, purpose, size, bitstring, updated_at
		 FROM status_lists WHERE id = $1 FOR UPDATE`, listID,
	).Scan(&l.ID, &l.TenantID, &l.Purpose, &l.Size, &l.Bitstring, &l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return List{}, fmt.Errorf("status list %s not found", listID)
		}
		return List{}, fmt.Errorf("locking status list %s: %w", listID, err)
	}
	return l, nil
}

// AllocateIndex locks the tenant's default list row, scans for the smallest
// free bit, and returns the list id and index WITHOUT flipping the bit and
// WITHOUT releasing the row lock — the caller (within the same transaction)
// must insert the owning Credential row before committing, so the lock
// covers allocation and insert together per §5.
func (s *Store) AllocateIndex(ctx context.Context, tenantID string) (uuid.UUID, int, error) {
	l, err := s.EnsureList(ctx, tenantID)
	if err != nil {
		return uuid.Nil, 0, err
	}

	locked, err := s.lockForUpdate(ctx, l.ID)
	if err != nil {
		return uuid.Nil, 0, err
	}

	idx := allocateFreeIndex(locked.Bitstring)
	if idx < 0 {
		return uuid.Nil, 0, apierr.StatusListFull("status list %s has no free index", l.ID)
	}

	telemetry.StatusListAllocationsTotal.Inc()
	return locked.ID, idx, nil
}

// Revoke locks listID's row, sets bit index, and persists the updated
// bitstring, all within the caller's transaction. Idempotent.
func (s *Store) Revoke(ctx context.Context, listID uuid.UUID, index int) error {
	l, err := s.lockForUpdate(ctx, listID)
	if err != nil {
		return err
	}

	if !SetRevoked(l.Bitstring, index) {
		return apierr.ValidationError("status list index %d out of range for list %s", index, listID)
	}

	_, err = s.dbtx.Exec(ctx,
		`UPDATE status_lists SET bitstring = $2, updated_at = $3 WHERE id = $1`,
		listID, l.Bitstring, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persisting revocation: %w", err)
	}
	return nil
}

// IsRevoked reads the current bit for index on listID without locking —
// safe for the public read-heavy verify path, where a stale read just means
// a revocation becomes visible a beat later.
func (s *Store) IsRevoked(ctx context.Context, listID uuid.UUID, index int) (bool, error) {
	var bits []byte
	err := s.dbtx.QueryRow(ctx, `SELECT bitstring FROM status_lists WHERE id = $1`, listID).Scan(&bits)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("fetching bitstring for list %s: %w", listID, err)
	}
	return IsRevoked(bits, index), nil
}
