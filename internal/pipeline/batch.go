package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	logging "github.com/nao1215/sentinel/internal/log"
	"github.com/nao1215/sentinel/internal/model"
)

// DefaultConcurrency is the number of concurrent scans when none is configured.
const DefaultConcurrency = 4

// Target is one contract to scan.
type Target struct {
	Address model.Address
	Chain   model.Chain
}

// Factory builds the pipeline for one target. Pipelines are built per chain,
// so the target is passed in.
type Factory func(target Target) (*Pipeline, error)

// BatchProcessor handles concurrent processing of multiple contracts.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// The factory is called for each scan so pipeline state never leaks
// between targets.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatchWithCallback scans targets and calls callback for each
// completed scan. The callback runs on the goroutine that finished the scan,
// so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(report *model.ContractReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("scanning contract",
				"address", target.Address.String(),
				"chain", target.Chain,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewContractReport(target.Address, target.Chain)

			p, err := bp.factory(target)
			if err != nil {
				report.SetError(logging.RedactError(err))
			} else if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("scan failed",
					"address", target.Address.String(),
					"error", err,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
