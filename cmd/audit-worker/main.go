package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yosiib2/LMIdone/internal/app"
	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/lib/logger"
)

func main() {
	// init config: cleanenv
	cfg := config.MustLoad()

	// init logger: log/slog
	log := logger.Setup(cfg.Env)

	log.Info("starting audit worker", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	// run Prometheus HTTP-server
	promAddr := fmt.Sprintf(
		"%s:%d",
		cfg.Prometheus.HOST,
		cfg.Prometheus.PORT,
	)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Info("starting Prometheus metrics server", slog.String("address", promAddr))
		if err := http.ListenAndServe(promAddr, nil); err != nil {
			log.Error("failed to start Prometheus metrics server", slog.Any("error", err))
		}
	}()

	// init worker
	worker, err := app.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize worker", slog.Any("error", err))
		os.Exit(1)
	}

	// run worker
	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Run()
	}()

	log.Info("audit worker started")

	// processing completion signals
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		log.Info("stopping audit worker...")
	case err := <-errChan:
		log.Error("audit worker crashed", slog.Any("error", err))
		os.Exit(1)
	}

	// context for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.GracefulShutdownTimeout)
	defer cancel()

	if err := worker.Shutdown(ctx); err != nil {
		log.Error("failed to stop audit worker", slog.Any("error", err))
	}

	log.Info("audit worker stopped")
}
