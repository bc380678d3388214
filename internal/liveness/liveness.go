package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
)

// Liveness methods reported in Result.Method.
const (
	MethodICMP    = "icmp"
	MethodTCP     = "tcp"
	MethodSkipped = "skipped"
)

// ErrICMPUnavailable is returned when no ICMP socket can be opened,
// typically for lack of privileges.
var ErrICMPUnavailable = errors.New("icmp socket unavailable")

// Result is the verdict of a liveness check.
type Result struct {
	// Alive is true when the host answered.
	Alive bool

	// Method names the check that produced the verdict.
	Method string
}

// Checker decides whether a host is reachable.
//
// A nil error with Alive false means the check ran and the host did not
// answer. An error means the check could not run at all.
type Checker interface {
	Check(ctx context.Context, addr netip.Addr) (Result, error)
}

// Always reports every host as alive without sending anything.
type Always struct{}

// Check implements Checker.
func (Always) Check(context.Context, netip.Addr) (Result, error) {
	return Result{Alive: true, Method: MethodSkipped}, nil
}

// Chain runs checkers in order until one reports the host alive.
// Checkers that fail to run are skipped.
type Chain struct {
	checkers []Checker
	logger   *slog.Logger
}

// NewChain creates a Chain. A nil logger discards output.
func NewChain(logger *slog.Logger, checkers ...Checker) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{checkers: checkers, logger: logger}
}

// Check implements Checker. It returns an error only when no checker
// could run.
func (c *Chain) Check(ctx context.Context, addr netip.Addr) (Result, error) {
	var (
		last Result
		ran  bool
		errs []error
	)
	for _, checker := range c.checkers {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		res, err := checker.Check(ctx, addr)
		if err != nil {
			c.logger.Debug("liveness check could not run", "addr", addr.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		c.logger.Debug("liveness check finished", "addr", addr.String(), "method", res.Method, "alive", res.Alive)
		if res.Alive {
			return res, nil
		}
		last, ran = res, true
	}

	if ran {
		return last, nil
	}
	if len(errs) == 0 {
		return Result{}, errors.New("no liveness checker configured")
	}
	return Result{}, fmt.Errorf("all liveness checks failed: %w", errors.Join(errs...))
}
