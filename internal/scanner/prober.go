package scanner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/portrecon/internal/catalog"
	"github.com/nao1215/portrecon/internal/model"
	"github.com/nao1215/portrecon/internal/protocol"
)

// DefaultConnectTimeout bounds the TCP connect of a port probe.
const DefaultConnectTimeout = 1 * time.Second

// PortProber decides the disposition of one port.
// Implementations must be safe for concurrent use and must return promptly
// once ctx is cancelled.
type PortProber interface {
	Probe(ctx context.Context, target model.Target, port int) model.ProbeResult
}

// Prober is the connect-then-identify PortProber.
//
// A port is open when a TCP handshake completes within the connect timeout.
// The connect socket is then closed and the identifier chosen for the port
// runs over a connection of its own.
type Prober struct {
	dialer         proxy.ContextDialer
	connectTimeout time.Duration
	catalog        *catalog.Catalog
	selector       *protocol.Selector
	logger         *slog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithConnectTimeout sets the connect timeout.
func WithConnectTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.connectTimeout = d
	}
}

// WithCatalog sets the service catalog used to name ports.
func WithCatalog(c *catalog.Catalog) ProberOption {
	return func(p *Prober) {
		p.catalog = c
	}
}

// WithSelector sets the identifier selector.
func WithSelector(s *protocol.Selector) ProberOption {
	return func(p *Prober) {
		p.selector = s
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a Prober that connects through dialer. Without
// WithSelector the default selector over the same dialer is used.
func NewProber(dialer proxy.ContextDialer, opts ...ProberOption) *Prober {
	p := &Prober{
		dialer:         dialer,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.selector == nil {
		p.selector = protocol.NewSelector(dialer)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Probe implements PortProber. It never fails: a connect error of any kind
// is the closed-or-filtered disposition, and a failed identification leaves
// the identification empty.
func (p *Prober) Probe(ctx context.Context, target model.Target, port int) model.ProbeResult {
	ep := target.Endpoint(port)
	result := model.ProbeResult{
		Port:    port,
		State:   model.StateClosedOrFiltered,
		Service: p.catalog.Lookup(port),
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", ep.Address())
	cancel()
	if err != nil {
		return result
	}
	result.Latency = time.Since(start)
	conn.Close() //nolint:errcheck,gosec // connect probe only
	result.State = model.StateOpen

	if ctx.Err() != nil {
		return result
	}

	identifier := p.selector.ForPort(port)
	if ident, ok := identifier.Identify(ctx, ep); ok {
		result.Identification = ident
	}
	p.logger.Debug("open port",
		"target", target.Host,
		"port", port,
		"service", result.Service,
		"protocol", identifier.Protocol(),
		"identified", result.HasIdentification(),
	)
	return result
}
