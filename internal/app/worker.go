package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/infrastructure/kafka/audit"
	"github.com/yosiib2/LMIdone/internal/infrastructure/kafka/dlq"
	chrep "github.com/yosiib2/LMIdone/internal/infrastructure/repository/clickhouse"
	"github.com/yosiib2/LMIdone/internal/metrics"
	"github.com/yosiib2/LMIdone/internal/service"
)

type TransitionConsumer interface {
	Consume(ctx context.Context) error
	Close() error
}

type DLQProducer interface {
	Close() error
}

type Repository interface {
	Close() error
}

type Service interface {
	Shutdown()
}

// Worker is the audit archiver: it consumes ledger transitions from Kafka
// and batches them into ClickHouse.
type Worker struct {
	log         *slog.Logger
	consumer    TransitionConsumer
	dlqProducer DLQProducer
	repository  Repository
	service     Service
}

func NewWorker(cfg config.Config, log *slog.Logger) (*Worker, error) {
	// init metrics Prometheus
	metrics.RegisterWorker()

	// init conn to ClickHouse
	conn, err := initClickHouseConnection(cfg, log)
	if err != nil {
		return nil, err
	}

	// temporary migration solution (TODO: replace with full-featured migrations)
	if err := workaroundMigrationClickHouse(conn); err != nil {
		log.Error("failed to create table ledger_audit", slog.Any("error", err))
		return nil, err
	}

	// init repository
	auditRepo := chrep.NewAuditRepository(conn, log)

	// init kafka dlq producer
	dlqProducer, err := dlq.NewDLQProducer(cfg.Kafka, log)
	if err != nil {
		log.Error("failed to create kafka dlq producer", slog.Any("error", err))
		return nil, err
	}

	// init service
	auditServ := service.NewAuditService(auditRepo, dlqProducer, cfg.AuditConfig, log)

	// init kafka consumer
	transitionConsumer, err := audit.NewTransitionConsumer(cfg.Kafka, log, auditServ)
	if err != nil {
		log.Error("failed to create kafka transition consumer", slog.Any("error", err))
		return nil, err
	}

	return &Worker{
		log:         log,
		consumer:    transitionConsumer,
		dlqProducer: dlqProducer,
		repository:  auditRepo,
		service:     auditServ,
	}, nil
}

func initClickHouseConnection(cfg config.Config, log *slog.Logger) (driver.Conn, error) {
	ch := cfg.ConnectionStrings.AuditClickHouse
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", ch.Host, ch.Port)},
		Auth: clickhouse.Auth{
			Database: ch.Database,
			Username: ch.Username,
			Password: ch.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": ch.MaxExecutionTime,
		},
		Compression: &clickhouse.Compression{
			Method: getCompressionMethod(ch.CompressionMethod),
		},
		DialTimeout:     ch.DialTimeout,
		MaxOpenConns:    ch.MaxOpenConns,
		MaxIdleConns:    ch.MaxIdleConns,
		ConnMaxLifetime: ch.ConnMaxLifetime,
		BlockBufferSize: ch.BlockBufferSize,
	})
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		return nil, err
	}

	if err = conn.Ping(context.Background()); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		return nil, err
	}

	return conn, nil
}

func (w *Worker) Run() error {
	w.log.Info("audit worker started, consuming transitions...")
	return w.consumer.Consume(context.Background())
}

func (w *Worker) Shutdown(ctx context.Context) error {
	w.log.Info("shutting down audit worker...")

	if err := w.consumer.Close(); err != nil {
		w.log.Error("failed to close message consumer", slog.Any("error", err))
	}

	// drain the service before the repository goes away
	w.service.Shutdown()

	if err := w.repository.Close(); err != nil {
		w.log.Error("failed to close repository", slog.Any("error", err))
	}

	if err := w.dlqProducer.Close(); err != nil {
		w.log.Error("failed to close message producer", slog.Any("error", err))
	}

	w.log.Info("audit worker stopped")
	return nil
}

func getCompressionMethod(method string) clickhouse.CompressionMethod {
	switch method {
	case "none":
		return clickhouse.CompressionNone
	case "zstd":
		return clickhouse.CompressionZSTD
	case "lz4":
		return clickhouse.CompressionLZ4
	case "lz4hc":
		return clickhouse.CompressionLZ4HC
	case "gzip":
		return clickhouse.CompressionGZIP
	case "deflate":
		return clickhouse.CompressionDeflate
	case "br":
		return clickhouse.CompressionBrotli
	default:
		return clickhouse.CompressionNone
	}
}

// TODO: implement migrations and remove this
func workaroundMigrationClickHouse(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS ledger_audit (
			purchase_id String,
			course_id String,
			learner_id String,
			amount_cents Int64,
			kind String,
			occurred_at DateTime,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree() ORDER BY (occurred_at, purchase_id);`)
}
