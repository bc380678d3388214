// Package protocol implements the service identifiers run against open ports.
//
// # Identifiers
//
//   - HTTP (port 80): HEAD / HTTP/1.1, reports the status line
//   - HTTPS (port 443): the same exchange over TLS with certificate verification
//   - RTSP (port 554): OPTIONS request, reports the first response line
//   - Banner (any other port): sends a newline, reports the trimmed reply
//
// Each identifier opens its own connection through a shared
// proxy.ContextDialer, reads at most MaxResponseSize bytes and bounds every
// operation with a timeout. Identifiers never fail: any error yields "no
// identification". Cancelling the context closes the connection, which
// unblocks pending reads.
//
// # Usage
//
//	sel := protocol.NewSelector(dialer, protocol.WithTimeout(time.Second))
//	ident, ok := sel.ForPort(ep.Port).Identify(ctx, ep)
package protocol
