// Package app wires configuration, infrastructure, and the domain services
// into a running HTTP server. This is the entry point cmd/pramana-api
// constructs the system through.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/pramana-labs/pramana/internal/agent"
	"github.com/pramana-labs/pramana/internal/audit"
	"github.com/pramana-labs/pramana/internal/auth"
	"github.com/pramana-labs/pramana/internal/bodylimit"
	"github.com/pramana-labs/pramana/internal/config"
	"github.com/pramana-labs/pramana/internal/credential"
	"github.com/pramana-labs/pramana/internal/httpserver"
	"github.com/pramana-labs/pramana/internal/kms"
	"github.com/pramana-labs/pramana/internal/platform"
	"github.com/pramana-labs/pramana/internal/ratelimit"
	"github.com/pramana-labs/pramana/internal/reqintent"
	"github.com/pramana-labs/pramana/internal/telemetry"
	"github.com/pramana-labs/pramana/pkg/didweb"
)

// Run reads infrastructure from cfg, connects to it, and serves the API
// until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting pramana", "listen", cfg.ListenAddr, "env", cfg.Env)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		if cfg.MigrationsStrict {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Error("running migrations (continuing, MIGRATIONS_STRICT=false)", "error", err)
	} else {
		logger.Info("migrations applied")
	}

	return runAPI(ctx, cfg, logger, db, rdb)
}

// newMetricsRegistry builds a registry carrying the standard process/Go
// collectors plus this service's HTTP and domain counters, mirroring the
// teacher's telemetry.NewMetricsRegistry aggregator.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(httpserver.HTTPRequestDuration)
	for _, c := range telemetry.All() {
		reg.MustRegister(c)
	}
	return reg
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	sealer := kms.NewDevSealer(cfg.KMSSecret)

	agentSvc := agent.NewService(db, sealer, cfg.Domain)
	resolver := didweb.NewResolver(cfg.Domain, cfg.Scheme, agentSvc)
	credSvc := credential.NewService(db, agentSvc, sealer, resolver, cfg.Domain, cfg.Scheme)
	intentSvc := reqintent.NewService(db, agentSvc, credSvc)

	// Materialize the process-wide status-list issuer agent before serving
	// traffic, so the first real request doesn't pay the one-time cost.
	if _, _, err := agentSvc.EnsureStatusIssuer(ctx); err != nil {
		return fmt.Errorf("materializing status issuer: %w", err)
	}

	var notifier *audit.Notifier
	if cfg.SlackWebhookURL != "" {
		notifier = audit.NewNotifier(cfg.SlackWebhookURL, logger)
	}
	auditWriter := audit.NewWriter(db, logger, notifier)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	verify, err := newVerifyFunc(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	snapshot := telemetry.NewSnapshot()
	limiter := ratelimit.New(rdb, cfg.RateLimitPerMinute)

	srv := httpserver.NewServer(
		httpserver.ServerConfig{AllowedOrigins: cfg.AllowedOrigins},
		logger, db, rdb, newMetricsRegistry(), snapshot,
		auth.Middleware(logger, verify),
		ratelimit.Middleware(limiter, logger),
		bodylimit.Middleware(cfg.MaxBodyBytes),
	)

	agentHandler := agent.NewHandler(agentSvc, logger, auditWriter)
	credHandler := credential.NewHandler(credSvc, logger, auditWriter)
	statusHandler := credential.NewStatusHandler(credSvc, logger)
	didHandler := agent.NewDIDHandler(agentSvc, cfg.Domain, logger)
	intentHandler := reqintent.NewHandler(intentSvc, logger, auditWriter)
	auditHandler := audit.NewHandler(db, logger)

	// --- Public routes: no Authorization header required ---
	srv.Router.Post("/v1/credentials/verify", credHandler.VerifyRoute())
	srv.Router.Get("/v1/status/{id}", statusHandler.HandleGet)
	srv.Router.Get("/agents/{id}/did.json", agentHandler.PublicDIDRoute())
	srv.Router.Get("/.well-known/did.json", didHandler.HandleWellKnown)
	srv.Router.Get("/v1/dids/*", didHandler.HandlePath)

	// --- Authenticated /v1 routes, scoped per §6's table ---
	srv.V1.Route("/agents", func(r chi.Router) {
		r.With(auth.RequireAnyScope(logger, "agents:create")).Post("/", agentHandler.CreateRoute())
		r.Route("/{id}", func(r chi.Router) {
			r.With(auth.RequireAnyScope(logger, "agents:create")).Get("/", agentHandler.GetRoute())
			r.With(auth.RequireAnyScope(logger, "tenant:admin")).Post("/keys/rotate", agentHandler.RotateKeyRoute())
		})
	})

	srv.V1.Route("/credentials", func(r chi.Router) {
		r.With(auth.RequireAnyScope(logger, "credentials:issue")).Post("/issue", credHandler.IssueRoute())
		r.With(auth.RequireAnyScope(logger, "credentials:revoke")).Post("/{id}/revoke", credHandler.RevokeRoute())
	})

	srv.V1.Route("/requirement_intents", func(r chi.Router) {
		r.With(auth.RequireAnyScope(logger, "credentials:issue")).Post("/", intentHandler.CreateRoute())
		r.Route("/{id}", func(r chi.Router) {
			r.With(auth.RequireAnyScope(logger, "credentials:issue")).Get("/", intentHandler.GetRoute())
			r.With(auth.RequireAnyScope(logger, "credentials:issue")).Post("/cancel", intentHandler.CancelRoute())
			// §6 lists both credentials:issue and credentials:revoke on
			// confirm; either one is accepted here.
			r.With(auth.RequireAnyScope(logger, "credentials:issue", "credentials:revoke")).Post("/confirm", intentHandler.ConfirmRoute())
		})
	})

	srv.V1.With(auth.RequireAnyScope(logger, "tenant:admin")).Mount("/audit", auditHandler.Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newVerifyFunc builds the auth.VerifyFunc dispatched by auth.Middleware,
// per cfg.AuthMode: "hs256" verifies internally issued tokens with a shared
// secret, "oidc" verifies externally issued RS256 tokens via JWKS.
func newVerifyFunc(ctx context.Context, cfg *config.Config) (auth.VerifyFunc, error) {
	switch cfg.AuthMode {
	case "", "hs256":
		if cfg.AuthJWTSecret == "" {
			return nil, fmt.Errorf("PRAMANA_AUTH_JWT_SECRET is required when PRAMANA_AUTH_MODE=hs256")
		}
		issuer, err := auth.NewHS256Issuer(cfg.AuthJWTSecret, cfg.AuthJWTIssuer)
		if err != nil {
			return nil, err
		}
		return func(_ context.Context, raw string) (*auth.Identity, error) {
			return issuer.Verify(raw)
		}, nil

	case "oidc":
		verifier, err := newOIDCVerifier(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return verifier.Verify, nil

	default:
		return nil, fmt.Errorf("unknown PRAMANA_AUTH_MODE %q", cfg.AuthMode)
	}
}

func newOIDCVerifier(ctx context.Context, cfg *config.Config) (*auth.OIDCVerifier, error) {
	if cfg.OIDCIssuer != "" {
		return auth.NewDiscoveryVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
	}

	var jwksJSON []byte
	switch {
	case cfg.OIDCJWKSJSON != "":
		jwksJSON = []byte(cfg.OIDCJWKSJSON)
	case cfg.OIDCJWKSURL != "":
		fetched, err := auth.FetchJWKS(ctx, cfg.OIDCJWKSURL)
		if err != nil {
			return nil, err
		}
		jwksJSON = fetched
	default:
		return nil, fmt.Errorf("PRAMANA_AUTH_MODE=oidc requires one of PRAMANA_OIDC_ISSUER, PRAMANA_OIDC_JWKS_URL, PRAMANA_OIDC_JWKS_JSON")
	}
	return auth.NewStaticJWKSVerifier(jwksJSON, cfg.OIDCAudience)
}
