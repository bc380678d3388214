package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// errNoAddress is returned when a host name resolves to nothing usable.
var errNoAddress = errors.New("no address found")

// hostResolver looks up the addresses of a host name.
// *net.Resolver satisfies it.
type hostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// resolveHost turns a target argument into the address every connection is
// made to. IP literals, bracketed IPv6 included, are used as given. Names are
// resolved locally and an IPv4 address is preferred when both families answer.
func resolveHost(ctx context.Context, r hostResolver, host string) (netip.Addr, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if trimmed == "" {
		return netip.Addr{}, fmt.Errorf("invalid target %q: empty host", host)
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		if addr.Zone() != "" {
			return addr, nil
		}
		return addr.Unmap(), nil
	}
	if strings.ContainsAny(trimmed, " /:") {
		return netip.Addr{}, fmt.Errorf("invalid target %q: not an IP address or host name", host)
	}

	addrs, err := r.LookupNetIP(ctx, "ip", trimmed)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to resolve %q: %w", host, err)
	}

	var fallback netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is4() {
			return a, nil
		}
		if !fallback.IsValid() {
			fallback = a
		}
	}
	if !fallback.IsValid() {
		return netip.Addr{}, fmt.Errorf("failed to resolve %q: %w", host, errNoAddress)
	}
	return fallback, nil
}
