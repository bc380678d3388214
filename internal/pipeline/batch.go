package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/portrecon/internal/model"
)

// DefaultConcurrency is the number of targets scanned at once when
// WithConcurrency is not given.
const DefaultConcurrency = 1

// BatchProcessor handles concurrent processing of multiple targets.
// It uses errgroup to manage goroutines and respect the concurrency limit.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target, so per-target
	// settings and step state never leak between scans.
	pipelineFactory func(target model.Target) *Pipeline

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
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
// Values below one are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(target model.Target) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatchWithCallback scans multiple targets and calls callback for
// each completed scan as soon as it finishes; index is the target's
// position in targets. Failed scans still produce a report carrying the
// error. The callback is called from the goroutine that ran the scan, so it
// must be safe for concurrent use when concurrency is above one.
//
// A target not started before ctx is cancelled gets no callback, and the
// cancellation error is returned.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []model.Target,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Debug("starting batch processing",
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

			bp.logger.Debug("scanning target",
				"target", target.String(),
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewScanReport(target)
			if err := bp.pipelineFactory(target).Execute(ctx, report); err != nil {
				// Recorded in the report; the other targets carry on.
				bp.logger.Debug("scan ended with error",
					"target", target.String(),
					"error", err,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Debug("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
