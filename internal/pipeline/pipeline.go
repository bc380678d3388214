package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/portrecon/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by the previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the scan of the target cannot go on.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence and stops at the first
// error, which is also recorded in the report. Each step depends on the
// one before it: there is no port scan without a liveness verdict.
//
// Cancellation is checked before each step; steps handle their own
// timeouts. A target found down returns model.ErrHostDown.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	p.logger.Debug("starting pipeline",
		"target", report.Target.String(),
		"steps", p.StepNames(),
	)

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			if report.Error == nil {
				report.SetError(ctx.Err())
			}
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", report.Target.Host,
		)

		err := step.Do(ctx, report)
		report.AddStep(step.Name())
		if err == nil {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"target", report.Target.Host,
			)
			continue
		}

		if report.Error == nil {
			report.SetError(err)
		}
		if errors.Is(err, model.ErrHostDown) {
			p.logger.Info("host seems down", "target", report.Target.String())
			return err
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"target", report.Target.Host,
			"error", err,
		)
		return err
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
