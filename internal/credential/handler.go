package credential

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/audit"
	"github.com/pramana-labs/pramana/internal/httpserver"
	"github.com/pramana-labs/pramana/internal/tenant"
)

// IssueRequest is the body of POST /v1/credentials/issue.
type IssueRequest struct {
	IssuerAgentID  uuid.UUID      `json:"issuer_agent_id" validate:"required"`
	SubjectDID     string         `json:"subject_did" validate:"required"`
	CredentialType string         `json:"credential_type" validate:"required"`
	TTLSeconds     *int64         `json:"ttl_seconds,omitempty"`
	ExtraClaims    map[string]any `json:"extra_claims,omitempty"`
}

// CredentialResponse is the public shape of an issued Credential.
type CredentialResponse struct {
	ID              uuid.UUID  `json:"id"`
	IssuerAgentID   uuid.UUID  `json:"issuer_agent_id"`
	SubjectDID      string     `json:"subject_did"`
	CredentialType  string     `json:"credential_type"`
	JWT             string     `json:"jwt"`
	StatusListID    uuid.UUID  `json:"status_list_id"`
	StatusListIndex int        `json:"status_list_index"`
	IssuedAt        time.Time  `json:"issued_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// VerifyRequest is the body of POST /v1/credentials/verify.
type VerifyRequest struct {
	JWT string `json:"jwt" validate:"required"`
}

// VerifyResponse is the composite verdict produced on top of §4.E's Verify,
// per §4.E's "Composite verdict".
type VerifyResponse struct {
	Verified bool           `json:"verified"`
	Reason   string         `json:"reason,omitempty"`
	Issuer   string         `json:"issuer,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Claims   map[string]any `json:"claims,omitempty"`
}

// Handler exposes the credential issuance, revocation, and verification
// HTTP surface.
type Handler struct {
	svc    *Service
	logger *slog.Logger
	audit  *audit.Writer
}

// NewHandler builds a credential Handler.
func NewHandler(svc *Service, logger *slog.Logger, audit *audit.Writer) *Handler {
	return &Handler{svc: svc, logger: logger, audit: audit}
}

// Routes returns the authenticated /v1/credentials router. Use this only
// when issue and revoke share one scope requirement; since §6 requires
// distinct scopes for each, internal/app mounts IssueRoute/RevokeRoute
// separately instead.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/issue", h.handleIssue)
	r.Post("/{id}/revoke", h.handleRevoke)
	return r
}

// IssueRoute returns the handler for POST /v1/credentials/issue, for mounting
// behind the credentials:issue scope check.
func (h *Handler) IssueRoute() http.HandlerFunc {
	return h.handleIssue
}

// RevokeRoute returns the handler for POST /v1/credentials/{id}/revoke, for
// mounting behind the credentials:revoke scope check.
func (h *Handler) RevokeRoute() http.HandlerFunc {
	return h.handleRevoke
}

// VerifyRoute returns the handler for the public POST /v1/credentials/verify
// endpoint, mounted separately since it carries no auth middleware.
func (h *Handler) VerifyRoute() http.HandlerFunc {
	return h.handleVerify
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	var ttl *time.Duration
	if req.TTLSeconds != nil {
		d := time.Duration(*req.TTLSeconds) * time.Second
		ttl = &d
	}

	tenantID := tenant.FromContext(r.Context())
	cred, err := h.svc.Issue(r.Context(), tenantID, IssueParams{
		IssuerAgentID:  req.IssuerAgentID,
		SubjectDID:     req.SubjectDID,
		CredentialType: req.CredentialType,
		TTL:            ttl,
		ExtraClaims:    req.ExtraClaims,
	})
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "credential.issued", "credential", cred.ID, nil)
	}

	httpserver.Respond(w, http.StatusCreated, toCredentialResponse(cred))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid credential id"))
		return
	}

	tenantID := tenant.FromContext(r.Context())
	if err := h.svc.Revoke(r.Context(), tenantID, id); err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "credential.revoked", "credential", id, nil)
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleVerify implements the composite verdict on top of §4.E's Verify:
// public, no auth, fails closed on any error (400-class, never "verified").
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Verify(r.Context(), req.JWT)
	if err != nil {
		// §4.E: any exception is a 400-class failure, never a 200 with
		// verified:false — only a successfully-verified-then-revoked
		// credential gets the 200/verified:false shape below.
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if result.Status.Present && result.Status.Revoked {
		httpserver.Respond(w, http.StatusOK, VerifyResponse{
			Verified: false,
			Reason:   "revoked",
			Issuer:   result.Claims.Iss,
			Subject:  result.Claims.Sub,
		})
		return
	}

	httpserver.Respond(w, http.StatusOK, VerifyResponse{
		Verified: true,
		Issuer:   result.Claims.Iss,
		Subject:  result.Claims.Sub,
	})
}

func toCredentialResponse(c Credential) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		IssuerAgentID:   c.IssuerAgentID,
		SubjectDID:      c.SubjectDID,
		CredentialType:  c.CredentialType,
		JWT:             c.JWT,
		StatusListID:    c.StatusListID,
		StatusListIndex: c.StatusListIndex,
		IssuedAt:        c.IssuedAt,
		ExpiresAt:       c.ExpiresAt,
	}
}
