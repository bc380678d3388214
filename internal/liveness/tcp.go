package liveness

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTCPPorts are tried by the TCP checker. A completed handshake or an
// active refusal on any of them proves the host is up.
var DefaultTCPPorts = []int{80, 443, 22, 3389}

// DefaultTCPTimeout bounds each connect of the TCP checker.
const DefaultTCPTimeout = 1 * time.Second

// TCPChecker decides liveness by connecting to a few common ports.
// It works without privileges and through a SOCKS5 proxy.
type TCPChecker struct {
	dialer  proxy.ContextDialer
	ports   []int
	timeout time.Duration
}

// TCPOption configures a TCPChecker.
type TCPOption func(*TCPChecker)

// WithTCPPorts sets the ports tried.
func WithTCPPorts(ports ...int) TCPOption {
	return func(c *TCPChecker) {
		c.ports = ports
	}
}

// WithTCPTimeout sets the per-connect timeout.
func WithTCPTimeout(d time.Duration) TCPOption {
	return func(c *TCPChecker) {
		c.timeout = d
	}
}

// NewTCPChecker creates a TCP connect checker using dialer.
func NewTCPChecker(dialer proxy.ContextDialer, opts ...TCPOption) *TCPChecker {
	c := &TCPChecker{dialer: dialer, ports: DefaultTCPPorts, timeout: DefaultTCPTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check implements Checker.
func (c *TCPChecker) Check(ctx context.Context, addr netip.Addr) (Result, error) {
	for _, port := range c.ports {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if c.answers(ctx, addr, port) {
			return Result{Alive: true, Method: MethodTCP}, nil
		}
	}
	return Result{Alive: false, Method: MethodTCP}, nil
}

// answers reports whether the host completed or refused a connection on port.
func (c *TCPChecker) answers(ctx context.Context, addr netip.Addr, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err == nil {
		conn.Close() //nolint:errcheck,gosec // probe connection
		return true
	}
	return isRefused(err)
}

// isRefused reports whether err is an active refusal (a TCP reset), which
// only a live host sends. SOCKS5 proxies report it as a reply string.
func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
