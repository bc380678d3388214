// Package dialer provides the connection factory shared by every probe.
//
// By default connections are made directly with net.Dialer. When a SOCKS5
// proxy is configured (plain "host:port" or socks5:// URL with optional
// credentials), connections are routed through golang.org/x/net/proxy.
// CheckProxy performs the SOCKS5 method negotiation to verify the proxy
// before a scan starts.
package dialer
