package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paddymills/nestbridge/pkg/config"
	"github.com/paddymills/nestbridge/pkg/kafka"
	"github.com/paddymills/nestbridge/pkg/metrics"
	"github.com/paddymills/nestbridge/pkg/resilience"
)

// Publisher is the outbound side of the exporter. pkg/kafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Exporter periodically exports feedback and hands each row to Kafka. A row
// is acknowledged (deleted) only after a successful publish, so delivery is
// at least once and a crash between publish and ack re-delivers the row.
type Exporter struct {
	svc      *Service
	programs Publisher
	parts    Publisher
	cfg      config.ExporterConfig
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewExporter creates an Exporter. metrics may be nil in tests.
func NewExporter(svc *Service, programs, parts Publisher, cfg config.ExporterConfig, m *metrics.Metrics) *Exporter {
	return &Exporter{
		svc:      svc,
		programs: programs,
		parts:    parts,
		cfg:      cfg,
		breaker:  resilience.NewCircuitBreaker("feedback-kafka", resilience.CircuitBreakerConfig{}),
		metrics:  m,
		logger:   slog.Default().With("component", "feedback-exporter"),
	}
}

// Run enters the export loop until ctx is cancelled.
func (x *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(x.cfg.Interval)
	defer ticker.Stop()

	x.logger.Info("exporter started", "interval", x.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			x.logger.Info("exporter stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			err := resilience.WithTimeout(ctx, x.cfg.Interval, "export-cycle", x.RunOnce)
			if err != nil {
				x.countCycle("error")
				x.logger.Error("export cycle failed", "error", err)
				continue
			}
			x.countCycle("ok")
		}
	}
}

// RunOnce performs a single export-publish-ack cycle.
func (x *Exporter) RunOnce(ctx context.Context) error {
	export, err := x.svc.Export(ctx)
	if err != nil {
		return err
	}

	for _, row := range export.Programs {
		if err := x.publishAndAck(ctx, x.programs, row.ArchivePacketID, row,
			func() error { return x.svc.DeleteProgramFeedback(ctx, row.ID) },
		); err != nil {
			return fmt.Errorf("program feedback %d: %w", row.ID, err)
		}
	}
	for _, row := range export.Parts {
		if err := x.publishAndAck(ctx, x.parts, row.ArchivePacketID, row,
			func() error { return x.svc.DeletePartFeedback(ctx, row.ID) },
		); err != nil {
			return fmt.Errorf("part feedback %d: %w", row.ID, err)
		}
	}

	if n := len(export.Programs) + len(export.Parts); n > 0 {
		x.logger.Info("export cycle complete",
			"programs", len(export.Programs),
			"parts", len(export.Parts),
		)
	}
	return nil
}

// publishAndAck publishes one row with retries and deletes it on success.
// An open circuit skips the publish entirely so broker outages fail fast
// instead of sitting through retry backoff per row.
func (x *Exporter) publishAndAck(ctx context.Context, pub Publisher, key string, value any, ack func() error) error {
	err := x.breaker.Execute(func() error {
		return resilience.Retry(ctx, "feedback-publish",
			resilience.RetryConfig{MaxAttempts: x.cfg.MaxAttempts},
			func() error {
				return pub.Publish(ctx, kafka.Event{Key: key, Value: value})
			},
		)
	})
	if err != nil {
		return err
	}
	return ack()
}

func (x *Exporter) countCycle(status string) {
	if x.metrics != nil {
		x.metrics.ExportCyclesTotal.WithLabelValues(status).Inc()
	}
}

