package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"teamleave/internal/domain/audit"
	"teamleave/internal/domain/auth"
	"teamleave/internal/domain/leave"
	"teamleave/internal/platform/config"
	"teamleave/internal/platform/db"
	"teamleave/internal/platform/jobs"
	"teamleave/internal/platform/metrics"
	"teamleave/internal/transport/http/api"
	audithandler "teamleave/internal/transport/http/handlers/audit"
	authhandler "teamleave/internal/transport/http/handlers/auth"
	leavehandler "teamleave/internal/transport/http/handlers/leave"
	"teamleave/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Jobs   *jobs.Service
	Router http.Handler
}

// deps is everything the router needs. Tests build it without a database.
type deps struct {
	Auth        *auth.Service
	Leave       *leave.Service
	Audit       *audit.Service
	Jobs        *jobs.Service
	Metrics     *metrics.Collector
	Idempotency *middleware.IdempotencyStore
	Ready       func(ctx context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	authStore := auth.NewStore(pool)
	leaveStore := leave.NewStore(pool)
	override := leave.NewOverrideAuthorizer(auth.NewPasswordVerifier(authStore))
	jobsSvc := jobs.New(pool, leaveStore, cfg)

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	router := newRouter(cfg, deps{
		Auth:        auth.NewService(authStore, cfg.JWTSecret, cfg.TokenTTL),
		Leave:       leave.NewService(leaveStore, override, cfg.SubtractPending),
		Audit:       audit.New(pool),
		Jobs:        jobsSvc,
		Metrics:     collector,
		Idempotency: middleware.NewIdempotencyStore(pool),
		Ready:       pool.Ping,
	})
	return &App{Config: cfg, DB: pool, Jobs: jobsSvc, Router: router}, nil
}

func newRouter(cfg config.Config, d deps) http.Handler {
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(d.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if d.Metrics != nil {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, d.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(d.Auth)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/me", authHandler.HandleMe)

		var recorder leavehandler.AuditRecorder
		if d.Audit != nil {
			recorder = d.Audit
		}
		leaveHandler := leavehandler.NewHandler(d.Leave, perms, recorder, d.Jobs, d.Metrics, d.Idempotency)
		leaveHandler.RegisterRoutes(r)

		if d.Audit != nil {
			auditHandler := audithandler.NewHandler(d.Audit, perms)
			auditHandler.RegisterRoutes(r)
		}
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	defer a.DB.Close()
	a.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("teamleave server listening", "addr", a.Config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
