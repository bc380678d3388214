package dialer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 method negotiation in CheckProxy.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants used by CheckProxy.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// Dialer opens TCP connections either directly or through a SOCKS5 proxy.
// Every probe and the TCP liveness check share one Dialer, so a configured
// proxy carries all scan traffic.
type Dialer struct {
	// proxyAddress is the proxy "host:port", empty for direct connections.
	proxyAddress string

	// auth holds optional SOCKS5 credentials.
	auth *proxy.Auth

	// dialer is the underlying dialer (net.Dialer or SOCKS5).
	dialer proxy.ContextDialer
}

// Direct returns a Dialer that connects without a proxy.
func Direct() *Dialer {
	return &Dialer{dialer: &net.Dialer{}}
}

// New creates a Dialer. An empty proxyAddress yields a direct dialer.
//
// proxyAddress is either "host:port" or a URL of the form
// socks5://[user:password@]host:port. The proxy is not contacted here;
// call CheckProxy to verify it.
func New(proxyAddress string) (*Dialer, error) {
	if proxyAddress == "" {
		return Direct(), nil
	}

	hostPort, auth, err := parseProxyAddress(proxyAddress)
	if err != nil {
		return nil, err
	}

	d, err := proxy.SOCKS5("tcp", hostPort, auth, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errNoContextDialer
	}

	return &Dialer{
		proxyAddress: hostPort,
		auth:         auth,
		dialer:       cd,
	}, nil
}

// parseProxyAddress splits a proxy address into host:port and credentials.
func parseProxyAddress(address string) (string, *proxy.Auth, error) {
	if !strings.Contains(address, "://") {
		if !isValidHostPort(address) {
			return "", nil, ErrInvalidProxyAddress
		}
		return address, nil, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidProxyAddress, err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return "", nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxyAddress, u.Scheme)
	}
	if !isValidHostPort(u.Host) {
		return "", nil, ErrInvalidProxyAddress
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	return u.Host, auth, nil
}

// isValidHostPort checks for a non-empty host and a port in 1-65535.
func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// DialContext connects to address, honoring ctx for cancellation.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.dialer.DialContext(ctx, network, address)
}

// ProxyAddress returns the configured proxy "host:port", or "" for direct.
func (d *Dialer) ProxyAddress() string {
	return d.proxyAddress
}

// UsesProxy reports whether connections go through a proxy.
func (d *Dialer) UsesProxy() bool {
	return d.proxyAddress != ""
}

// CheckProxy verifies that the configured proxy is reachable and speaks
// SOCKS5 by performing the method negotiation step of the handshake.
// A direct dialer always reports ProxyStatusOK.
func (d *Dialer) CheckProxy(ctx context.Context) ProxyStatus {
	if !d.UsesProxy() {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + number of methods + methods
	methods := []byte{socks5AuthNone}
	if d.auth != nil {
		methods = append(methods, socks5AuthPassword)
	}
	greeting := append([]byte{socks5Version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	// version + selected method
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	switch resp[1] {
	case socks5AuthNone:
		return ProxyStatusOK
	case socks5AuthPassword:
		if d.auth != nil {
			return ProxyStatusOK
		}
		return ProxyStatusAuthRejected
	case socks5AuthNoAccept:
		return ProxyStatusAuthRejected
	default:
		return ProxyStatusWrongType
	}
}
