package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/httpserver"
	"github.com/pramana-labs/pramana/internal/tenant"
)

// EventResponse is the public shape of one audit_events row.
type EventResponse struct {
	ID           uuid.UUID  `json:"id"`
	EventType    string     `json:"event_type"`
	Actor        string     `json:"actor,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Handler exposes GET /v1/audit, scoped to tenant:admin.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes returns the /v1/audit router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("%v", err))
		return
	}

	tenantID := tenant.FromContext(r.Context())

	var total int
	if err := h.pool.QueryRow(r.Context(),
		`SELECT count(*) FROM audit_events WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("counting audit events").WithCause(err))
		return
	}

	rows, err := h.pool.Query(r.Context(),
		`SELECT id, event_type, actor, resource_type, resource_id, created_at
		 FROM audit_events WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("listing audit events").WithCause(err))
		return
	}
	defer rows.Close()

	var items []EventResponse
	for rows.Next() {
		var e EventResponse
		var actor, resourceType *string
		if err := rows.Scan(&e.ID, &e.EventType, &actor, &resourceType, &e.ResourceID, &e.CreatedAt); err != nil {
			httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("scanning audit event").WithCause(err))
			return
		}
		if actor != nil {
			e.Actor = *actor
		}
		if resourceType != nil {
			e.ResourceType = *resourceType
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.Internal("reading audit events").WithCause(err))
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}
