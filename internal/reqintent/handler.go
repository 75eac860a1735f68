package reqintent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/audit"
	"github.com/pramana-labs/pramana/internal/bodylimit"
	"github.com/pramana-labs/pramana/internal/httpserver"
	"github.com/pramana-labs/pramana/internal/tenant"
)

const maxIdempotencyKeyLen = 200

// CreateRequest is the body of POST /v1/requirement_intents.
type CreateRequest struct {
	SubjectDID   *string        `json:"subject_did,omitempty"`
	IssuerName   string         `json:"issuer_name" validate:"required,min=1,max=200"`
	SubjectName  string         `json:"subject_name" validate:"required,min=1,max=200"`
	Requirements RequirementSet `json:"requirements" validate:"required"`
	Options      Options        `json:"options,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ConfirmRequest is the (possibly empty) body of POST /{id}/confirm.
type ConfirmRequest struct {
	Options *Options `json:"options,omitempty"`
}

// IntentResponse is the public shape of a RequirementIntent.
type IntentResponse struct {
	ID           uuid.UUID      `json:"id"`
	Status       Status         `json:"status"`
	SubjectDID   *string        `json:"subject_did,omitempty"`
	IssuerName   string         `json:"issuer_name"`
	SubjectName  string         `json:"subject_name"`
	Requirements RequirementSet `json:"requirements"`
	Decision     *Decision      `json:"decision,omitempty"`
	ProofBundle  *ProofBundle   `json:"proof_bundle,omitempty"`
	LastError    *string        `json:"last_error,omitempty"`
}

// Handler exposes the requirement-intent HTTP surface.
type Handler struct {
	svc    *Service
	logger *slog.Logger
	audit  *audit.Writer
}

// NewHandler builds a reqintent Handler.
func NewHandler(svc *Service, logger *slog.Logger, audit *audit.Writer) *Handler {
	return &Handler{svc: svc, logger: logger, audit: audit}
}

// Routes returns the authenticated /v1/requirement_intents router. Use this
// only when every sub-route shares one scope requirement; since §6 requires
// a broader scope on confirm than on create/get/cancel, internal/app mounts
// CreateRoute/GetRoute/ConfirmRoute/CancelRoute separately instead.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/confirm", h.handleConfirm)
		r.Post("/cancel", h.handleCancel)
	})
	return r
}

// CreateRoute returns the handler for POST /v1/requirement_intents.
func (h *Handler) CreateRoute() http.HandlerFunc {
	return h.handleCreate
}

// GetRoute returns the handler for GET /v1/requirement_intents/{id}.
func (h *Handler) GetRoute() http.HandlerFunc {
	return h.handleGet
}

// ConfirmRoute returns the handler for POST /v1/requirement_intents/{id}/confirm.
func (h *Handler) ConfirmRoute() http.HandlerFunc {
	return h.handleConfirm
}

// CancelRoute returns the handler for POST /v1/requirement_intents/{id}/cancel.
func (h *Handler) CancelRoute() http.HandlerFunc {
	return h.handleCancel
}

func idempotencyKey(r *http.Request) *string {
	raw := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if raw == "" {
		return nil
	}
	if len(raw) > maxIdempotencyKeyLen {
		raw = raw[:maxIdempotencyKeyLen]
	}
	return &raw
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID := tenant.FromContext(r.Context())
	in, err := h.svc.Create(r.Context(), tenantID, CreateParams{
		SubjectDID:     req.SubjectDID,
		IssuerName:     req.IssuerName,
		SubjectName:    req.SubjectName,
		Requirements:   req.Requirements,
		Options:        req.Options,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "requirement_intent.created", "requirement_intent", in.ID, nil)
	}

	httpserver.Respond(w, http.StatusOK, toIntentResponse(in))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid requirement intent id"))
		return
	}

	tenantID := tenant.FromContext(r.Context())
	in, err := h.svc.Get(r.Context(), tenantID, id)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, toIntentResponse(in))
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid requirement intent id"))
		return
	}

	// The confirm body is optional and decoded into a generic value (not a
	// typed struct) so canonicalJSON can re-sort its keys before hashing,
	// per §4.F's "canonical_json({tenant_id, intent_id, body})".
	var body any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if bodylimit.RespondIfTooLarge(w, err) {
				return
			}
			httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid request body"))
			return
		}
	}

	tenantID := tenant.FromContext(r.Context())
	in, err := h.svc.Confirm(r.Context(), tenantID, id, idempotencyKey(r), body)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil && in.Status == StatusSucceeded {
		h.audit.LogFromRequest(r, "requirement_intent.confirmed", "requirement_intent", in.ID, nil)
	}

	httpserver.Respond(w, http.StatusOK, toIntentResponse(in))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid requirement intent id"))
		return
	}

	tenantID := tenant.FromContext(r.Context())
	in, err := h.svc.Cancel(r.Context(), tenantID, id)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "requirement_intent.canceled", "requirement_intent", in.ID, nil)
	}

	httpserver.Respond(w, http.StatusOK, toIntentResponse(in))
}

func toIntentResponse(in Intent) IntentResponse {
	return IntentResponse{
		ID:           in.ID,
		Status:       in.Status,
		SubjectDID:   in.SubjectDID,
		IssuerName:   in.IssuerName,
		SubjectName:  in.SubjectName,
		Requirements: in.Requirements,
		Decision:     in.Decision,
		ProofBundle:  in.ProofBundle,
		LastError:    in.LastError,
	}
}
