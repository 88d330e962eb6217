// The exporter binary runs the feedback export loop on its own, for
// deployments that keep the HTTP bridge and the downstream publisher on
// separate hosts. Run it with exporter.enabled set to false on the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paddymills/nestbridge/internal/feedback"
	"github.com/paddymills/nestbridge/internal/store"
	"github.com/paddymills/nestbridge/pkg/config"
	"github.com/paddymills/nestbridge/pkg/kafka"
	"github.com/paddymills/nestbridge/pkg/logger"
	"github.com/paddymills/nestbridge/pkg/metrics"
	"github.com/paddymills/nestbridge/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single export cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging)
	slog.Info("starting feedback exporter", "interval", cfg.Exporter.Interval)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	programs := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ProgramFeedback)
	parts := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PartFeedback)
	defer programs.Close()
	defer parts.Close()

	svc := feedback.NewService(store.New(db), m)
	exporter := feedback.NewExporter(svc, programs, parts, cfg.Exporter, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := exporter.RunOnce(ctx); err != nil {
			slog.Error("export cycle failed", "error", err)
			os.Exit(1)
		}
		slog.Info("export cycle complete")
		return
	}

	if err := exporter.Run(ctx); err != nil {
		slog.Error("exporter error", "error", err)
		os.Exit(1)
	}

	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("feedback exporter stopped")
}
