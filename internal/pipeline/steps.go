package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/portrecon/internal/liveness"
	"github.com/nao1215/portrecon/internal/model"
)

// PortScanner scans the port range of a target.
// *scanner.Engine satisfies it.
type PortScanner interface {
	Scan(ctx context.Context, target model.Target) (*model.ScanSession, error)
}

// LivenessStep decides whether the target is up before any port is probed.
type LivenessStep struct {
	checker liveness.Checker
	logger  *slog.Logger
}

// LivenessStepOption configures a LivenessStep.
type LivenessStepOption func(*LivenessStep)

// WithLivenessLogger sets a custom logger for the liveness step.
func WithLivenessLogger(logger *slog.Logger) LivenessStepOption {
	return func(s *LivenessStep) {
		s.logger = logger
	}
}

// NewLivenessStep creates a liveness step using checker.
func NewLivenessStep(checker liveness.Checker, opts ...LivenessStepOption) *LivenessStep {
	s := &LivenessStep{
		checker: checker,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LivenessStep) Name() string {
	return "liveness"
}

// Do executes the liveness check. A host that does not answer ends the scan
// in the Completed state with model.ErrHostDown.
func (s *LivenessStep) Do(ctx context.Context, report *model.ScanReport) error {
	report.State = model.ScanLivenessChecking

	res, err := s.checker.Check(ctx, report.Target.Addr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.State = model.ScanCompleted
		return fmt.Errorf("liveness check failed: %w", err)
	}

	report.LivenessMethod = res.Method
	report.HostUp = res.Alive
	if !res.Alive {
		report.State = model.ScanCompleted
		return model.ErrHostDown
	}

	s.logger.Debug("host is up",
		"target", report.Target.String(),
		"method", res.Method,
	)
	return nil
}

// PortScanStep runs the port scan of the target.
type PortScanStep struct {
	scanner PortScanner
	logger  *slog.Logger
}

// PortScanStepOption configures a PortScanStep.
type PortScanStepOption func(*PortScanStep)

// WithPortScanLogger sets a custom logger for the port scan step.
func WithPortScanLogger(logger *slog.Logger) PortScanStepOption {
	return func(s *PortScanStep) {
		s.logger = logger
	}
}

// NewPortScanStep creates a port scan step using scanner.
func NewPortScanStep(scanner PortScanner, opts ...PortScanStepOption) *PortScanStep {
	s := &PortScanStep{
		scanner: scanner,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PortScanStep) Name() string {
	return "port_scan"
}

// Do executes the port scan. A partial session is kept in the report even
// when the scan was cancelled.
func (s *PortScanStep) Do(ctx context.Context, report *model.ScanReport) error {
	report.State = model.ScanScanning

	session, err := s.scanner.Scan(ctx, report.Target)
	if session != nil {
		report.Session = session
	}
	if err != nil {
		return err
	}

	if session.TimedOut {
		report.State = model.ScanTimedOut
	} else {
		report.State = model.ScanCompleted
	}

	s.logger.Info("port scan finished",
		"target", report.Target.String(),
		"open", len(session.OpenPorts()),
		"scanned", session.Scanned(),
		"timed_out", session.TimedOut,
		"elapsed", session.Elapsed,
	)
	return nil
}

// DefaultPipeline creates the standard pipeline: liveness check followed by
// the port scan. The pipeline logger is shared with its steps.
func DefaultPipeline(checker liveness.Checker, scanner PortScanner, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewLivenessStep(checker, WithLivenessLogger(p.logger)),
		NewPortScanStep(scanner, WithPortScanLogger(p.logger)),
	)
	return p
}
