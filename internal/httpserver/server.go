package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pramana-labs/pramana/internal/telemetry"
)

// ServerConfig carries the pieces of configuration NewServer needs from
// internal/config, kept narrow to avoid an import cycle between
// internal/config and internal/httpserver.
type ServerConfig struct {
	AllowedOrigins []string
}

// Server holds the HTTP server dependencies and routing surface. Domain
// handlers are mounted onto V1 by internal/app after construction; public
// (unauthenticated) routes are mounted directly on Router.
type Server struct {
	Router  *chi.Mux
	V1      chi.Router // authenticated /v1 sub-router, scope middleware mounted per-route by internal/app
	Logger  *slog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Metrics *prometheus.Registry

	startedAt time.Time
}

// NewServer creates the HTTP server and its ambient middleware stack
// (request id, access log, metrics, panic recovery, CORS), plus the
// unauthenticated health/metrics endpoints. authMiddleware (which also
// resolves tenancy from the authenticated Identity, see internal/auth) is
// applied to the /v1 sub-router only — callers mount public routes (verify,
// status, did documents) directly on Router, and authenticated domain
// routers on V1.
func NewServer(
	cfg ServerConfig,
	logger *slog.Logger,
	db *pgxpool.Pool,
	rdb *redis.Client,
	metricsReg *prometheus.Registry,
	snapshot *telemetry.Snapshot,
	authMiddleware func(http.Handler) http.Handler,
	rateLimitMiddleware func(http.Handler) http.Handler,
	bodyLimitMiddleware func(http.Handler) http.Handler,
) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics(snapshot))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(rateLimitMiddleware)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	s.Router.Get("/v1/metrics/snapshot", func(w http.ResponseWriter, r *http.Request) {
		Respond(w, http.StatusOK, snapshot.View())
	})

	s.Router.Route("/v1", func(r chi.Router) {
		r.Use(bodyLimitMiddleware)
		r.Use(authMiddleware)
		s.V1 = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

