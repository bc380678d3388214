package dialer

import "errors"

// Proxy errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address is neither
	// "host:port" nor a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://[user:pass@]host:port")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not speak SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy handshake times out.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// errNoContextDialer is returned when x/net/proxy hands back a SOCKS5
	// dialer without DialContext.
	errNoContextDialer = errors.New("SOCKS5 dialer does not support contexts")

	// ErrProxyAuthRejected is returned when the proxy accepts none of the
	// offered authentication methods.
	ErrProxyAuthRejected = errors.New("proxy rejected the offered authentication methods")
)

// ProxyStatus is the result of checking the configured proxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates a working SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the peer does not speak SOCKS5.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates the proxy is unreachable.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the handshake timed out.
	ProxyStatusTimeout

	// ProxyStatusAuthRejected indicates the proxy wants credentials we do not have.
	ProxyStatusAuthRejected
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	case ProxyStatusAuthRejected:
		return "authentication rejected"
	default:
		return "unknown"
	}
}

// Error returns the matching sentinel error, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	case ProxyStatusAuthRejected:
		return ErrProxyAuthRejected
	default:
		return errors.New("unknown proxy status")
	}
}
