package reqintent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pramana-labs/pramana/internal/db"
)

// Store persists RequirementIntents.
type Store struct {
	dbtx db.DBTX
}

// NewStore wraps a DBTX (pool or transaction) in a reqintent Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// Create inserts a new Intent in status requires_confirmation.
func (s *Store) Create(ctx context.Context, in Intent) error {
	reqJSON, optJSON, metaJSON, err := marshalCreateFields(in)
	if err != nil {
		return err
	}
	_, err = s.dbtx.Exec(ctx,
		`INSERT INTO requirement_intents
			(id, tenant_id, status, subject_did, issuer_name, subject_name,
			 requirements, options, metadata, idempotency_key, request_hash,
			 created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		in.ID, in.TenantID, in.Status, in.SubjectDID, in.IssuerName, in.SubjectName,
		reqJSON, optJSON, metaJSON, in.IdempotencyKey, in.RequestHash,
		in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting requirement intent: %w", err)
	}
	return nil
}

func marshalCreateFields(in Intent) ([]byte, []byte, []byte, error) {
	reqJSON, err := json.Marshal(in.Requirements)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling requirements: %w", err)
	}
	optJSON, err := json.Marshal(in.Options)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling options: %w", err)
	}
	metaJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return reqJSON, optJSON, metaJSON, nil
}

// Get fetches an Intent scoped to tenant without locking the row; see
// GetForUpdate for the locking variant.
func (s *Store) Get(ctx context.Context, tenantID string, id uuid.UUID) (Intent, bool, error) {
	return s.get(ctx, tenantID, id, false)
}

// GetForUpdate is Get with SELECT ... FOR UPDATE, for confirm/cancel
// transitions that must not race each other.
func (s *Store) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (Intent, bool, error) {
	return s.get(ctx, tenantID, id, true)
}

func (s *Store) get(ctx context.Context, tenantID string, id uuid.UUID, forUpdate bool) (Intent, bool, error) {
	query := `SELECT id, tenant_id, status, subject_did, issuer_name, subject_name,
	                  requirements, options, metadata,
	                  idempotency_key, request_hash, confirm_idempotency_key, confirm_request_hash,
	                  decision, proof_bundle, last_error, created_at, updated_at
	           FROM requirement_intents WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		in                                         Intent
		reqRaw, optRaw, metaRaw                    []byte
		decisionRaw, bundleRaw                      []byte
	)
	err := s.dbtx.QueryRow(ctx, query, id, tenantID).Scan(
		&in.ID, &in.TenantID, &in.Status, &in.SubjectDID, &in.IssuerName, &in.SubjectName,
		&reqRaw, &optRaw, &metaRaw,
		&in.IdempotencyKey, &in.RequestHash, &in.ConfirmIdempotencyKey, &in.ConfirmRequestHash,
		&decisionRaw, &bundleRaw, &in.LastError, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Intent{}, false, nil
		}
		return Intent{}, false, fmt.Errorf("fetching requirement intent %s: %w", id, err)
	}

	if err := unmarshalIntentFields(&in, reqRaw, optRaw, metaRaw, decisionRaw, bundleRaw); err != nil {
		return Intent{}, false, err
	}
	return in, true, nil
}

func unmarshalIntentFields(in *Intent, reqRaw, optRaw, metaRaw, decisionRaw, bundleRaw []byte) error {
	if len(reqRaw) > 0 {
		if err := json.Unmarshal(reqRaw, &in.Requirements); err != nil {
			return fmt.Errorf("unmarshaling requirements: %w", err)
		}
	}
	if len(optRaw) > 0 {
		if err := json.Unmarshal(optRaw, &in.Options); err != nil {
			return fmt.Errorf("unmarshaling options: %w", err)
		}
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &in.Metadata); err != nil {
			return fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if len(decisionRaw) > 0 {
		var d Decision
		if err := json.Unmarshal(decisionRaw, &d); err != nil {
			return fmt.Errorf("unmarshaling decision: %w", err)
		}
		in.Decision = &d
	}
	if len(bundleRaw) > 0 {
		var b ProofBundle
		if err := json.Unmarshal(bundleRaw, &b); err != nil {
			return fmt.Errorf("unmarshaling proof bundle: %w", err)
		}
		in.ProofBundle = &b
	}
	return nil
}

// GetByIdempotencyKey looks up an intent by its create-phase idempotency
// key, scoped to tenant.
func (s *Store) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (Intent, bool, error) {
	var id uuid.UUID
	err := s.dbtx.QueryRow(ctx,
		`SELECT id FROM requirement_intents WHERE tenant_id = $1 AND idempotency_key = $2`,
		tenantID, key,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Intent{}, false, nil
		}
		return Intent{}, false, fmt.Errorf("looking up idempotency key: %w", err)
	}
	return s.Get(ctx, tenantID, id)
}

// MarkProcessing transitions an intent to processing and persists the
// confirm-phase idempotency fields, on whatever DBTX the Store wraps.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID, confirmKey, confirmHash *string, now time.Time) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE requirement_intents
		 SET status = $2, confirm_idempotency_key = $3, confirm_request_hash = $4, updated_at = $5
		 WHERE id = $1`,
		id, StatusProcessing, confirmKey, confirmHash, now)
	if err != nil {
		return fmt.Errorf("marking requirement intent %s processing: %w", id, err)
	}
	return nil
}

// Finalize persists a terminal status (succeeded/failed) along with the
// decision and proof bundle.
func (s *Store) Finalize(ctx context.Context, id uuid.UUID, status Status, decision Decision, bundle ProofBundle, lastErr *string, now time.Time) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshaling decision: %w", err)
	}
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshaling proof bundle: %w", err)
	}
	_, err = s.dbtx.Exec(ctx,
		`UPDATE requirement_intents
		 SET status = $2, decision = $3, proof_bundle = $4, last_error = $5, updated_at = $6
		 WHERE id = $1`,
		id, status, decisionJSON, bundleJSON, lastErr, now)
	if err != nil {
		return fmt.Errorf("finalizing requirement intent %s: %w", id, err)
	}
	return nil
}

// Cancel transitions a non-terminal intent to canceled. No-op (returns
// false, nil) if the intent is already terminal.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, status Status, now time.Time) (bool, error) {
	if status.Terminal() {
		return false, nil
	}
	_, err := s.dbtx.Exec(ctx,
		`UPDATE requirement_intents SET status = $2, updated_at = $3 WHERE id = $1`,
		id, StatusCanceled, now)
	if err != nil {
		return false, fmt.Errorf("canceling requirement intent %s: %w", id, err)
	}
	return true, nil
}
