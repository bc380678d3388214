package model

import (
	"net"
	"net/netip"
	"strconv"
)

// Target is the host and inclusive port range of one scan.
// It is built once from validated input and never modified afterwards.
type Target struct {
	// Host is the target exactly as supplied (IP literal or host name).
	// It is used for the HTTP Host header, TLS SNI and the RTSP URL.
	Host string `json:"host"`

	// Addr is the resolved address every connection is made to.
	Addr netip.Addr `json:"addr"`

	// StartPort is the first port scanned.
	StartPort int `json:"start_port"`

	// EndPort is the last port scanned (inclusive).
	EndPort int `json:"end_port"`
}

// NewTarget creates a Target. The caller is responsible for validating the range.
func NewTarget(host string, addr netip.Addr, start, end int) Target {
	return Target{Host: host, Addr: addr, StartPort: start, EndPort: end}
}

// PortCount returns the number of ports in the range.
func (t Target) PortCount() int {
	if t.EndPort < t.StartPort {
		return 0
	}
	return t.EndPort - t.StartPort + 1
}

// Ports returns every port in the range in ascending order.
func (t Target) Ports() []int {
	ports := make([]int, 0, t.PortCount())
	for p := t.StartPort; p <= t.EndPort; p++ {
		ports = append(ports, p)
	}
	return ports
}

// Endpoint returns the endpoint for one port of the target.
func (t Target) Endpoint(port int) Endpoint {
	return Endpoint{Host: t.Host, Addr: t.Addr, Port: port}
}

// String returns the host followed by the resolved address when they differ.
func (t Target) String() string {
	addr := t.Addr.String()
	if !t.Addr.IsValid() || t.Host == addr {
		return t.Host
	}
	return t.Host + " (" + addr + ")"
}

// Endpoint is a single host:port that a probe talks to.
type Endpoint struct {
	// Host is the name used inside protocol messages.
	Host string

	// Addr is the address dialed.
	Addr netip.Addr

	// Port is the TCP port.
	Port int
}

// Address returns the dial address, bracketing IPv6 literals.
func (e Endpoint) Address() string {
	host := e.Host
	if e.Addr.IsValid() {
		host = e.Addr.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(e.Port))
}

// HostPort returns Host joined with Port, bracketing IPv6 literals.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
