package protocol

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/nao1215/portrecon/internal/model"
	"golang.org/x/net/proxy"
)

// Well-known ports with a protocol-specific identifier.
const (
	PortHTTP  = 80
	PortHTTPS = 443
	PortRTSP  = 554
)

// MaxResponseSize is the largest response read by any identifier.
const MaxResponseSize = 1024

// DefaultTimeout bounds each dial, handshake, write and read of an identifier.
const DefaultTimeout = 1 * time.Second

// Identifier obtains an identification string (status line, protocol
// reply or banner) from a service on an endpoint known to be open.
//
// Identify never returns an error: every failure means "nothing
// identified" and is reported as ("", false). A failed identification says
// nothing about whether the port is open.
type Identifier interface {
	// Identify opens its own connection to ep and runs the exchange.
	// It must return promptly when ctx is cancelled.
	Identify(ctx context.Context, ep model.Endpoint) (string, bool)

	// Protocol returns the protocol name (e.g. "http", "banner").
	Protocol() string
}

// options holds settings shared by all identifiers.
type options struct {
	timeout     time.Duration
	versionOnly bool
	tlsConfig   *tls.Config
	logger      *slog.Logger
}

// Option configures an identifier.
type Option func(*options)

// WithTimeout sets the per-operation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithVersionOnly makes the HTTP, HTTPS and RTSP identifiers report only
// the protocol version token of the status line (e.g. "HTTP/1.1") instead
// of the whole line.
func WithVersionOnly(versionOnly bool) Option {
	return func(o *options) {
		o.versionOnly = versionOnly
	}
}

// WithTLSConfig sets the base TLS configuration for the HTTPS identifier.
// The server name is filled in per endpoint when the config leaves it empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithLogger sets the logger used for debug output about failed exchanges.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Selector chooses the identifier for a port. Ports 80, 443 and 554 get
// their protocol identifier; every other port gets the banner identifier.
// The choice is final: a protocol identifier that finds nothing is not
// followed by a banner grab.
type Selector struct {
	byPort   map[int]Identifier
	fallback Identifier
}

// NewSelector creates the default selector. All identifiers share dialer
// and opts.
func NewSelector(dialer proxy.ContextDialer, opts ...Option) *Selector {
	return NewSelectorWith(map[int]Identifier{
		PortHTTP:  NewHTTPIdentifier(dialer, opts...),
		PortHTTPS: NewHTTPSIdentifier(dialer, opts...),
		PortRTSP:  NewRTSPIdentifier(dialer, opts...),
	}, NewBannerIdentifier(dialer, opts...))
}

// NewSelectorWith creates a selector from an explicit port mapping and
// fallback identifier.
func NewSelectorWith(byPort map[int]Identifier, fallback Identifier) *Selector {
	m := make(map[int]Identifier, len(byPort))
	for port, id := range byPort {
		m[port] = id
	}
	return &Selector{byPort: m, fallback: fallback}
}

// ForPort returns the identifier for port.
func (s *Selector) ForPort(port int) Identifier {
	if id, ok := s.byPort[port]; ok {
		return id
	}
	return s.fallback
}
