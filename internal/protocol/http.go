package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/nao1215/portrecon/internal/model"
	"golang.org/x/net/proxy"
)

// HTTPIdentifier sends "HEAD / HTTP/1.1" and reports the response status
// line. The same exchange runs over TLS for the HTTPS variant.
type HTTPIdentifier struct {
	dialer proxy.ContextDialer
	opts   options
	tls    bool
}

// NewHTTPIdentifier creates a plain HTTP identifier.
func NewHTTPIdentifier(dialer proxy.ContextDialer, opts ...Option) *HTTPIdentifier {
	return &HTTPIdentifier{dialer: dialer, opts: newOptions(opts)}
}

// NewHTTPSIdentifier creates an HTTP over TLS identifier. Certificates are
// verified against the system roots with the target host as server name
// unless WithTLSConfig says otherwise.
func NewHTTPSIdentifier(dialer proxy.ContextDialer, opts ...Option) *HTTPIdentifier {
	return &HTTPIdentifier{dialer: dialer, opts: newOptions(opts), tls: true}
}

// Protocol returns "https" for the TLS variant and "http" otherwise.
func (h *HTTPIdentifier) Protocol() string {
	if h.tls {
		return "https"
	}
	return "http"
}

// Identify performs the HEAD exchange and returns the status line, or
// only its version token in version-only mode.
func (h *HTTPIdentifier) Identify(ctx context.Context, ep model.Endpoint) (string, bool) {
	logger := h.opts.logger.With("protocol", h.Protocol(), "port", ep.Port)

	conn, err := dial(ctx, h.dialer, ep, h.opts.timeout)
	if err != nil {
		logger.Debug("identification connect failed", "error", err)
		return "", false
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	if h.tls {
		tlsConn, err := h.handshake(ctx, conn, ep)
		if err != nil {
			logger.Debug("TLS handshake failed", "error", err)
			return "", false
		}
		conn = tlsConn
	}

	request := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\n\r\n", hostHeader(ep.Host))
	resp, err := exchange(conn, []byte(request), h.opts.timeout, true)
	if err != nil {
		if !isCancellation(ctx, err) {
			logger.Debug("no HTTP response", "error", err)
		}
		return "", false
	}

	line := firstLine(decode(resp))
	if h.opts.versionOnly {
		line = versionToken(line)
	}
	return line, line != ""
}

// handshake wraps conn in a TLS client and completes the handshake.
func (h *HTTPIdentifier) handshake(ctx context.Context, conn net.Conn, ep model.Endpoint) (*tls.Conn, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if h.opts.tlsConfig != nil {
		cfg = h.opts.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = ep.Host
	}

	tlsConn := tls.Client(conn, cfg)
	hctx, cancel := context.WithTimeout(ctx, h.opts.timeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// hostHeader brackets IPv6 literals for use in a Host header.
func hostHeader(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}
