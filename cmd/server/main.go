package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paddymills/nestbridge/internal/feedback"
	"github.com/paddymills/nestbridge/internal/recon"
	"github.com/paddymills/nestbridge/internal/server"
	"github.com/paddymills/nestbridge/internal/store"
	"github.com/paddymills/nestbridge/internal/viewer"
	"github.com/paddymills/nestbridge/pkg/config"
	"github.com/paddymills/nestbridge/pkg/health"
	"github.com/paddymills/nestbridge/pkg/kafka"
	"github.com/paddymills/nestbridge/pkg/logger"
	"github.com/paddymills/nestbridge/pkg/metrics"
	"github.com/paddymills/nestbridge/pkg/middleware"
	"github.com/paddymills/nestbridge/pkg/postgres"
	pkgredis "github.com/paddymills/nestbridge/pkg/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging)
	slog.Info("starting nestbridge server", "port", cfg.Server.Port, "systems", len(cfg.Systems))

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pg := store.New(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pg.Schema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "database", cfg.Postgres.Database)

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, viewer caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		slog.Info("viewer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Viewer.CacheTTL)
	}

	engine := recon.New(pg, recon.NewConfigResolver(cfg), m)
	fbService := feedback.NewService(pg, m)
	vwService := viewer.NewService(pg, redisClient, cfg.Viewer.CacheTTL, m)

	var exporter *feedback.Exporter
	if cfg.Exporter.Enabled {
		programs := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ProgramFeedback)
		parts := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PartFeedback)
		defer programs.Close()
		defer parts.Close()

		exporter = feedback.NewExporter(fbService, programs, parts, cfg.Exporter, m)
		slog.Info("feedback exporter enabled",
			"interval", cfg.Exporter.Interval,
			"program_topic", cfg.Kafka.Topics.ProgramFeedback,
			"part_topic", cfg.Kafka.Topics.PartFeedback,
		)
	}

	checker := health.NewChecker("nestbridge")
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(engine, fbService, vwService)
	mux := h.Routes()
	mux.HandleFunc("GET /health", checker.ReadyHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RequestID(chain)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("nestbridge server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if exporter != nil {
		g.Go(func() error {
			return exporter.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("nestbridge server stopped")
}
