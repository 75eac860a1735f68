package credential

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/httpserver"
)

// StatusHandler serves the public GET /v1/status/{id} endpoint.
type StatusHandler struct {
	svc    *Service
	logger *slog.Logger
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(svc *Service, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, logger: logger}
}

// HandleGet serves GET /v1/status/{id}?format=vc-jwt|raw. Defaults to
// vc-jwt when format is omitted.
func (h *StatusHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("invalid status list id"))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "vc-jwt"
	}

	switch format {
	case "vc-jwt":
		raw, _, err := h.svc.PublishStatus(r.Context(), id)
		if err != nil {
			httpserver.RespondErrWithRequestID(w, r, h.logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/jwt")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
	case "raw":
		encoded, err := h.svc.RawStatus(r.Context(), id)
		if err != nil {
			httpserver.RespondErrWithRequestID(w, r, h.logger, err)
			return
		}
		httpserver.Respond(w, http.StatusOK, map[string]string{"encoded_list": encoded})
	default:
		httpserver.RespondErrWithRequestID(w, r, h.logger, apierr.ValidationError("unsupported format %q", format))
	}
}
