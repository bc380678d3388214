package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/portrecon/internal/model"
)

// Engine defaults.
const (
	DefaultDeadline    = 60 * time.Second
	DefaultGracePeriod = 2 * time.Second
)

// ErrEmptyRange is returned when the target has no ports to scan.
var ErrEmptyRange = errors.New("port range is empty")

// Engine scans the port range of a target with a fixed pool of workers
// under a single deadline.
//
// Ports are handed to workers through a jobs channel. Results come back
// over one channel drained by the collector in Scan, which is the only
// writer of the session. When the deadline fires, in-flight probes are
// cancelled, late results are dropped, and Scan waits at most the grace
// period for the workers before returning what it has.
type Engine struct {
	prober   PortProber
	workers  int
	deadline time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the pool size. Values below one are raised to one.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// WithDeadline sets the global scan deadline.
func WithDeadline(d time.Duration) Option {
	return func(e *Engine) {
		e.deadline = d
	}
}

// WithGracePeriod sets how long Scan waits for workers after the deadline.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.grace = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine using prober for every port.
func NewEngine(prober PortProber, opts ...Option) *Engine {
	e := &Engine{
		prober:   prober,
		workers:  max(runtime.NumCPU(), 1),
		deadline: DefaultDeadline,
		grace:    DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Scan probes every port of target and returns the session sorted by port.
//
// When the deadline expires the session holds the ports finished in time
// and has TimedOut set; the error is nil. When ctx itself is cancelled the
// partial session is returned together with ctx.Err().
func (e *Engine) Scan(ctx context.Context, target model.Target) (*model.ScanSession, error) {
	if target.PortCount() == 0 {
		return nil, fmt.Errorf("%w: %d-%d", ErrEmptyRange, target.StartPort, target.EndPort)
	}

	start := time.Now()
	session := model.NewScanSession(target, start, start.Add(e.deadline))

	scanCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	jobs := make(chan int)
	results := make(chan model.ProbeResult, e.workers)

	g, gctx := errgroup.WithContext(scanCtx)
	g.Go(func() error {
		defer close(jobs)
		for port := target.StartPort; port <= target.EndPort; port++ {
			select {
			case <-gctx.Done():
				return nil
			case jobs <- port:
			}
		}
		return nil
	})
	for range e.workers {
		g.Go(func() error {
			for port := range jobs {
				res := e.prober.Probe(gctx, target, port)
				if gctx.Err() != nil {
					// Finished after the deadline or cancellation.
					return nil
				}
				select {
				case results <- res:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	workersDone := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck,gosec // workers never fail
		close(workersDone)
	}()

	finished := e.collect(scanCtx, session, results, workersDone)
	if !finished {
		e.awaitWorkers(target, workersDone)
	}

	session.Elapsed = time.Since(start)
	session.Sort()

	if err := ctx.Err(); err != nil {
		e.logger.Warn("scan cancelled", "target", target.Host, "scanned", session.Scanned())
		return session, err
	}
	if errors.Is(scanCtx.Err(), context.DeadlineExceeded) && session.Unscanned() > 0 {
		session.TimedOut = true
		e.logger.Warn("scan deadline reached",
			"target", target.Host,
			"deadline", e.deadline,
			"scanned", session.Scanned(),
			"unscanned", session.Unscanned(),
		)
	}
	return session, nil
}

// collect drains results into session until every worker has exited or
// scanCtx is done. It reports whether the workers finished.
func (e *Engine) collect(scanCtx context.Context, session *model.ScanSession, results <-chan model.ProbeResult, workersDone <-chan struct{}) bool {
	for {
		select {
		case res := <-results:
			session.Add(res)
		case <-workersDone:
			drain(session, results)
			return true
		case <-scanCtx.Done():
			// Results already queued were finished before cancellation.
			drain(session, results)
			return false
		}
	}
}

// drain adds whatever is buffered in results without blocking.
func drain(session *model.ScanSession, results <-chan model.ProbeResult) {
	for {
		select {
		case res := <-results:
			session.Add(res)
		default:
			return
		}
	}
}

// awaitWorkers waits up to the grace period for the workers to exit.
// Workers still running afterwards finish on their own and their results
// are discarded.
func (e *Engine) awaitWorkers(target model.Target, workersDone <-chan struct{}) {
	timer := time.NewTimer(e.grace)
	defer timer.Stop()

	select {
	case <-workersDone:
	case <-timer.C:
		e.logger.Warn("workers still running after grace period",
			"target", target.Host,
			"grace", e.grace,
		)
	}
}
