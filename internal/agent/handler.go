package agent

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
	"github.com/pramana-labs/pramana/pkg/didweb"
	"github.com/pramana-labs/pramana/pkg/keymaterial"
)

// CreateRequest is the body of POST /v1/agents.
type CreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// AgentResponse is the public shape of an Agent.
type AgentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DID       string    `json:"did"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyResponse is the public shape of a newly minted Key: the public half
// only, never the sealed private key.
type KeyResponse struct {
	Kid       string          `json:"kid"`
	PublicJWK keymaterial.JWK `json:"public_jwk"`
	CreatedAt time.Time       `json:"created_at"`
	Active    bool            `json:"active"`
}

// CreateAgentResponse bundles the agent and its initial key.
type CreateAgentResponse struct {
	Agent AgentResponse `json:"agent"`
	Key   KeyResponse   `json:"key"`
}

// Handler exposes the agent/key/DID-document HTTP surface.
type Handler struct {
	svc    *Service
	logger *slog.Logger
	audit  *audit.Writer
}

// NewHandler builds an agent Handler.
func NewHandler(svc *Service, logger *slog.Logger, audit *audit.Writer) *Handler {
	return &Handler{svc: svc, logger: logger, audit: audit}
}

// Routes returns the authenticated /v1/agents router. Use this only when
// every sub-route shares one scope requirement; since §6 requires
// agents:create for create/get and tenant:admin for key rotation,
// internal/app mounts CreateRoute/GetRoute/RotateKeyRoute separately instead.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/keys/rotate", h.handleRotateKey)
		r.Get("/did.json", h.handleAgentDIDDocument)
	})
	return r
}

// CreateRoute returns the handler for POST /v1/agents.
func (h *Handler) CreateRoute() http.HandlerFunc {
	return h.handleCreate
}

// GetRoute returns the handler for GET /v1/agents/{id}.
func (h *Handler) GetRoute() http.HandlerFunc {
	return h.handleGet
}

// RotateKeyRoute returns the handler for POST /v1/agents/{id}/keys/rotate.
func (h *Handler) RotateKeyRoute() http.HandlerFunc {
	return h.handleRotateKey
}

// PublicDIDRoute returns the handler for the public GET /agents/{id}/did.json
// endpoint, mounted outside the authenticated /v1 router.
func (h *Handler) PublicDIDRoute() http.HandlerFunc {
	return h.handleAgentDIDDocument
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	tenantID := tenant.FromContext(r.Context())
	a, key, err := h.svc.CreateAgent(r.Context(), tenantID, req.Name)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "create", "agent", a.ID, nil)
	}

	httpserver.Respond(w, http.StatusCreated, CreateAgentResponse{
		Agent: toAgentResponse(a),
		Key:   toKeyResponse(key),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid agent id"))
		return
	}

	tenantID := tenant.FromContext(r.Context())
	a, ok, err := h.svc.GetAgent(r.Context(), tenantID, id)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("fetching agent").WithCause(err))
		return
	}
	if !ok {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.NotFound("agent %s not found", id))
		return
	}

	httpserver.Respond(w, http.StatusOK, toAgentResponse(a))
}

func (h *Handler) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid agent id"))
		return
	}

	tenantID := tenant.FromContext(r.Context())
	key, err := h.svc.RotateKey(r.Context(), tenantID, id)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, "rotate_key", "agent", id, nil)
	}

	httpserver.Respond(w, http.StatusOK, toKeyResponse(key))
}

// handleAgentDIDDocument serves GET /agents/{id}/did.json — public, no auth.
func (h *Handler) handleAgentDIDDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid agent id"))
		return
	}

	a, ok, err := h.svc.GetAgent(r.Context(), tenant.FromContext(r.Context()), id)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("fetching agent").WithCause(err))
		return
	}
	if !ok {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.NotFound("agent %s not found", id))
		return
	}

	doc, err := h.svc.DIDDocument(r.Context(), a)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("assembling did document").WithCause(err))
		return
	}
	httpserver.Respond(w, http.StatusOK, doc)
}

// DIDHandler serves the well-known/path-based did:web resolution surface
// (/.well-known/did.json and /v1/dids/{path}/did.json), independent of the
// agent-scoped handler above.
type DIDHandler struct {
	svc    *Service
	domain string
	logger *slog.Logger
}

// NewDIDHandler builds a DIDHandler.
func NewDIDHandler(svc *Service, domain string, logger *slog.Logger) *DIDHandler {
	return &DIDHandler{svc: svc, domain: domain, logger: logger}
}

// HandleWellKnown serves GET /.well-known/did.json for the status-list
// issuer's own DID (did:web:<domain>, no path segments).
func (h *DIDHandler) HandleWellKnown(w http.ResponseWriter, r *http.Request) {
	did := didweb.StatusIssuerDID(h.domain)
	doc, ok, err := h.svc.LookupDIDDocument(r.Context(), did)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("resolving did").WithCause(err))
		return
	}
	if !ok {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.NotFound("no document for %s", did))
		return
	}
	httpserver.Respond(w, http.StatusOK, doc)
}

// HandlePath serves GET /v1/dids/{path}/did.json for any locally-hosted
// did:web DID addressed by path segments (e.g. "agents/<id>").
func (h *DIDHandler) HandlePath(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	did := "did:web:" + h.domain + ":" + pathToDIDSegments(path)

	doc, ok, err := h.svc.LookupDIDDocument(r.Context(), did)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("resolving did").WithCause(err))
		return
	}
	if !ok {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.NotFound("no document for %s", did))
		return
	}
	httpserver.Respond(w, http.StatusOK, doc)
}

func pathToDIDSegments(urlPath string) string {
	out := make([]byte, 0, len(urlPath))
	for i := 0; i < len(urlPath); i++ {
		if urlPath[i] == '/' {
			out = append(out, ':')
		} else {
			out = append(out, urlPath[i])
		}
	}
	return string(out)
}

func toAgentResponse(a Agent) AgentResponse {
	return AgentResponse{ID: a.ID, Name: a.Name, DID: a.DID, CreatedAt: a.CreatedAt}
}

func toKeyResponse(k Key) KeyResponse {
	return KeyResponse{Kid: k.Kid, PublicJWK: k.PublicJWK, CreatedAt: k.CreatedAt, Active: k.Active}
}
