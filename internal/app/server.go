package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/infrastructure/gateway"
	"github.com/yosiib2/LMIdone/internal/infrastructure/kafka/audit"
	pgrep "github.com/yosiib2/LMIdone/internal/infrastructure/repository/postgres"
	"github.com/yosiib2/LMIdone/internal/metrics"
	"github.com/yosiib2/LMIdone/internal/service"
	"github.com/yosiib2/LMIdone/internal/transport/rest"
)

// Server wires the API process: checkout initiation, the gateway webhook,
// and the thin read surface, all over one Postgres pool.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	pool       *pgxpool.Pool
	producer   *audit.TransitionProducer
}

func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	// init metrics Prometheus
	metrics.RegisterServer()

	pool, err := initPostgresPool(cfg, log)
	if err != nil {
		return nil, err
	}

	// temporary migration solution (TODO: replace with full-featured migrations)
	if err := workaroundMigrationPostgres(pool); err != nil {
		log.Error("failed to create postgres tables", slog.Any("error", err))
		return nil, err
	}

	ledgerRepo := pgrep.NewLedgerRepository(pool, log)
	catalogRepo := pgrep.NewCatalogRepository(pool, log)

	producer, err := audit.NewTransitionProducer(cfg.Kafka, log)
	if err != nil {
		log.Error("failed to create kafka transition producer", slog.Any("error", err))
		return nil, err
	}

	checkoutClient := gateway.NewCheckoutClient(cfg.Gateway, log)
	verifier := gateway.NewWebhookVerifier(cfg.Gateway.WebhookSecret, cfg.Gateway.ClockTolerance)

	checkoutServ := service.NewCheckoutService(ledgerRepo, catalogRepo, checkoutClient, producer, cfg.Gateway.ClientURL, log)
	reconcileServ := service.NewReconcileService(ledgerRepo, verifier, producer, log)

	handler := rest.NewHandler(checkoutServ, reconcileServ, catalogRepo, log)
	router := rest.NewRouter(handler, rest.NewAuthenticator(cfg.Auth.JWTSecret))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTPServer.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	return &Server{
		log:        log,
		httpServer: httpServer,
		pool:       pool,
		producer:   producer,
	}, nil
}

func (s *Server) Run() error {
	s.log.Info("api server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down api server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("failed to stop http server", slog.Any("error", err))
	}

	if err := s.producer.Close(); err != nil {
		s.log.Error("failed to close transition producer", slog.Any("error", err))
	}

	s.pool.Close()

	s.log.Info("api server stopped")
	return nil
}

func initPostgresPool(cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionStrings.Postgres.URL)
	if err != nil {
		log.Error("invalid postgres url", slog.Any("error", err))
		return nil, err
	}
	poolCfg.MaxConns = cfg.ConnectionStrings.Postgres.MaxOpenConns

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionStrings.Postgres.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		return nil, err
	}

	return pool, nil
}

// TODO: implement migrations and remove this
func workaroundMigrationPostgres(pool *pgxpool.Pool) error {
	_, err := pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS courses (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			discount_pct SMALLINT NOT NULL DEFAULT 0 CHECK (discount_pct BETWEEN 0 AND 100),
			published BOOLEAN NOT NULL DEFAULT false,
			educator_id TEXT NOT NULL,
			content JSONB
		);
		CREATE TABLE IF NOT EXISTS learners (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS purchases (
			id UUID PRIMARY KEY,
			course_id UUID NOT NULL REFERENCES courses(id),
			learner_id TEXT NOT NULL REFERENCES learners(id),
			amount_cents BIGINT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS enrollments (
			course_id UUID NOT NULL REFERENCES courses(id),
			learner_id TEXT NOT NULL REFERENCES learners(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (course_id, learner_id)
		);`)
	return err
}
