package reqintent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramana-labs/pramana/internal/agent"
	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/credential"
	"github.com/pramana-labs/pramana/internal/telemetry"
)

// CreateParams bundles Service.Create's inputs.
type CreateParams struct {
	SubjectDID     *string
	IssuerName     string
	SubjectName    string
	Requirements   RequirementSet
	Options        Options
	Metadata       map[string]any
	IdempotencyKey *string
}

// Service implements the RequirementIntent two-phase state machine.
type Service struct {
	pool    *pgxpool.Pool
	agents  *agent.Service
	creds   *credential.Service
}

// NewService builds a reqintent Service.
func NewService(pool *pgxpool.Pool, agents *agent.Service, creds *credential.Service) *Service {
	return &Service{pool: pool, agents: agents, creds: creds}
}

// requestBody is the shape hashed for create-phase idempotency.
type requestBody struct {
	TenantID string      `json:"tenant_id"`
	Body     CreateParams `json:"body"`
}

// Create implements the create-phase of §4.F: idempotent-by-key insert of a
// new intent in status requires_confirmation.
func (s *Service) Create(ctx context.Context, tenantID string, p CreateParams) (Intent, error) {
	hash, err := requestHash(requestBody{TenantID: tenantID, Body: p})
	if err != nil {
		return Intent{}, apierr.Internal("hashing create request").WithCause(err)
	}

	store := NewStore(s.pool)
	if p.IdempotencyKey != nil {
		existing, ok, err := store.GetByIdempotencyKey(ctx, tenantID, *p.IdempotencyKey)
		if err != nil {
			return Intent{}, apierr.Internal("looking up idempotency key").WithCause(err)
		}
		if ok {
			if existing.RequestHash == nil || *existing.RequestHash != hash {
				return Intent{}, apierr.IdempotencyConflict("idempotency key %q already used with a different request body", *p.IdempotencyKey)
			}
			return existing, nil
		}
	}

	now := time.Now().UTC()
	in := Intent{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Status:         StatusRequiresConfirmation,
		SubjectDID:     p.SubjectDID,
		IssuerName:     p.IssuerName,
		SubjectName:    p.SubjectName,
		Requirements:   p.Requirements,
		Options:        p.Options,
		Metadata:       p.Metadata,
		IdempotencyKey: p.IdempotencyKey,
		RequestHash:    &hash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.Create(ctx, in); err != nil {
		return Intent{}, apierr.Internal("persisting requirement intent").WithCause(err)
	}
	return in, nil
}

// Get fetches an intent scoped to tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (Intent, error) {
	store := NewStore(s.pool)
	in, ok, err := store.Get(ctx, tenantID, id)
	if err != nil {
		return Intent{}, apierr.Internal("fetching requirement intent").WithCause(err)
	}
	if !ok {
		return Intent{}, apierr.NotFound("requirement intent %s not found", id)
	}
	return in, nil
}

// Cancel transitions a non-terminal intent to canceled. A no-op on terminal
// intents, per §4.F.
func (s *Service) Cancel(ctx context.Context, tenantID string, id uuid.UUID) (Intent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Intent{}, apierr.Internal("starting transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	store := NewStore(tx)
	in, ok, err := store.GetForUpdate(ctx, tenantID, id)
	if err != nil {
		return Intent{}, apierr.Internal("fetching requirement intent").WithCause(err)
	}
	if !ok {
		return Intent{}, apierr.NotFound("requirement intent %s not found", id)
	}

	if !in.Status.Terminal() {
		now := time.Now().UTC()
		if _, err := store.Cancel(ctx, id, in.Status, now); err != nil {
			return Intent{}, apierr.Internal("canceling requirement intent").WithCause(err)
		}
		in.Status = StatusCanceled
		in.UpdatedAt = now
	}

	if err := tx.Commit(ctx); err != nil {
		return Intent{}, apierr.Internal("committing cancellation").WithCause(err)
	}
	return in, nil
}

// confirmBody is the shape hashed for confirm-phase idempotency.
type confirmBody struct {
	TenantID string `json:"tenant_id"`
	IntentID string `json:"intent_id"`
	Body     any    `json:"body"`
}

// Confirm implements the confirm-phase of §4.F: issuer/subject creation,
// per-requirement issuance and verification, and persistence of the final
// decision and proof bundle.
func (s *Service) Confirm(ctx context.Context, tenantID string, id uuid.UUID, confirmIdempotencyKey *string, body any) (Intent, error) {
	hash, err := requestHash(confirmBody{TenantID: tenantID, IntentID: id.String(), Body: body})
	if err != nil {
		return Intent{}, apierr.Internal("hashing confirm request").WithCause(err)
	}

	store := NewStore(s.pool)
	in, ok, err := store.Get(ctx, tenantID, id)
	if err != nil {
		return Intent{}, apierr.Internal("fetching requirement intent").WithCause(err)
	}
	if !ok {
		return Intent{}, apierr.NotFound("requirement intent %s not found", id)
	}

	if confirmIdempotencyKey != nil && in.ConfirmIdempotencyKey != nil && *in.ConfirmIdempotencyKey == *confirmIdempotencyKey {
		if in.ConfirmRequestHash == nil || *in.ConfirmRequestHash != hash {
			return Intent{}, apierr.IdempotencyConflict("confirm idempotency key %q already used with a different request body", *confirmIdempotencyKey)
		}
		return in, nil
	}
	if in.Status != StatusRequiresConfirmation {
		// Already processing or terminal under a different (or absent) key:
		// replay the current state rather than re-running side effects.
		return in, nil
	}

	now := time.Now().UTC()
	if err := store.MarkProcessing(ctx, id, confirmIdempotencyKey, &hash, now); err != nil {
		return Intent{}, apierr.Internal("marking requirement intent processing").WithCause(err)
	}
	in.Status = StatusProcessing

	decision, bundle, confirmErr := s.runRequirements(ctx, tenantID, in)

	finalStatus := StatusSucceeded
	var lastErr *string
	if confirmErr != nil {
		finalStatus = StatusFailed
		msg := confirmErr.Error()
		lastErr = &msg
	} else if decision.Status != "satisfied" {
		finalStatus = StatusFailed
	}

	finalizeNow := time.Now().UTC()
	if err := store.Finalize(ctx, id, finalStatus, decision, bundle, lastErr, finalizeNow); err != nil {
		return Intent{}, apierr.Internal("finalizing requirement intent").WithCause(err)
	}

	in.Status = finalStatus
	in.Decision = &decision
	in.ProofBundle = &bundle
	in.LastError = lastErr
	in.UpdatedAt = finalizeNow

	telemetry.RequirementIntentsConfirmedTotal.WithLabelValues(string(finalStatus)).Inc()
	return applyReturnMode(in), nil
}

// runRequirements creates a fresh issuer and subject agent for this
// confirmation, then issues and verifies one credential per requirement, in
// order.
func (s *Service) runRequirements(ctx context.Context, tenantID string, in Intent) (Decision, ProofBundle, error) {
	issuer, _, err := s.agents.CreateAgent(ctx, tenantID, in.IssuerName)
	if err != nil {
		return Decision{}, ProofBundle{}, fmt.Errorf("creating issuer agent: %w", err)
	}

	subjectDID := ""
	if in.SubjectDID != nil && *in.SubjectDID != "" {
		subjectDID = *in.SubjectDID
	} else {
		subject, _, err := s.agents.CreateAgent(ctx, tenantID, in.SubjectName)
		if err != nil {
			return Decision{}, ProofBundle{}, fmt.Errorf("creating subject agent: %w", err)
		}
		subjectDID = subject.DID
	}

	decision := Decision{Status: "satisfied"}
	bundle := ProofBundle{IssuerDID: issuer.DID, SubjectDID: subjectDID}

	for _, req := range in.Requirements.Items {
		credType := req.Type
		if credType == "" {
			credType = "CapabilityCredential"
		}

		cred, err := s.creds.Issue(ctx, tenantID, credential.IssueParams{
			IssuerAgentID:  issuer.ID,
			SubjectDID:     subjectDID,
			CredentialType: credType,
			ExtraClaims:    req.Claims,
		})
		if err != nil {
			decision.Status = "not_satisfied"
			decision.Requirements = append(decision.Requirements, DecisionRequirement{ID: req.ID, Satisfied: false, Reason: err.Error()})
			continue
		}

		verified, verr := s.creds.Verify(ctx, cred.JWT)
		satisfied := verr == nil && !(verified.Status.Present && verified.Status.Revoked)
		reason := ""
		if verr != nil {
			reason = verr.Error()
		} else if verified.Status.Present && verified.Status.Revoked {
			reason = "revoked"
		}
		if !satisfied {
			decision.Status = "not_satisfied"
		}
		decision.Requirements = append(decision.Requirements, DecisionRequirement{ID: req.ID, Satisfied: satisfied, Reason: reason})

		bundle.Credentials = append(bundle.Credentials, RequirementResult{
			RequirementID:   req.ID,
			CredentialID:    cred.ID,
			VCJWT:           cred.JWT,
			StatusListURL:   s.creds.StatusListURL(cred.StatusListID),
			StatusListIndex: cred.StatusListIndex,
			Verified:        satisfied,
		})
	}

	return decision, bundle, nil
}

// applyReturnMode suppresses decision or proof_bundle per in.Options.ReturnMode.
func applyReturnMode(in Intent) Intent {
	switch in.Options.ReturnMode {
	case ReturnDecision:
		in.ProofBundle = nil
	case ReturnBundle:
		in.Decision = nil
	case ReturnBoth, "":
		// keep both
	}
	return in
}
