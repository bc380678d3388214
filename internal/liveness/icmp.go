package liveness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Default ICMP settings.
const (
	DefaultPingCount   = 3
	DefaultPingTimeout = 1 * time.Second
)

// icmpPayload is carried in every echo request.
var icmpPayload = []byte("portrecon-liveness")

// ICMPChecker sends ICMP echo requests and waits for a matching reply.
//
// An unprivileged datagram socket is tried first (Linux permits it when
// net.ipv4.ping_group_range includes the user), then a raw socket.
type ICMPChecker struct {
	count   int
	timeout time.Duration
}

// ICMPOption configures an ICMPChecker.
type ICMPOption func(*ICMPChecker)

// WithPingCount sets the number of echo requests.
func WithPingCount(n int) ICMPOption {
	return func(c *ICMPChecker) {
		c.count = n
	}
}

// WithPingTimeout sets how long to wait for each reply.
func WithPingTimeout(d time.Duration) ICMPOption {
	return func(c *ICMPChecker) {
		c.timeout = d
	}
}

// NewICMPChecker creates an ICMP echo checker.
func NewICMPChecker(opts ...ICMPOption) *ICMPChecker {
	c := &ICMPChecker{count: DefaultPingCount, timeout: DefaultPingTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// icmpFamily holds the per IP version constants.
type icmpFamily struct {
	networks  [2]string // unprivileged, privileged
	listen    string
	proto     int
	echoType  icmp.Type
	replyType icmp.Type
}

var (
	familyV4 = icmpFamily{
		networks:  [2]string{"udp4", "ip4:icmp"},
		listen:    "0.0.0.0",
		proto:     1,
		echoType:  ipv4.ICMPTypeEcho,
		replyType: ipv4.ICMPTypeEchoReply,
	}
	familyV6 = icmpFamily{
		networks:  [2]string{"udp6", "ip6:ipv6-icmp"},
		listen:    "::",
		proto:     58,
		echoType:  ipv6.ICMPTypeEchoRequest,
		replyType: ipv6.ICMPTypeEchoReply,
	}
)

// Check implements Checker.
func (c *ICMPChecker) Check(ctx context.Context, addr netip.Addr) (Result, error) {
	addr = addr.Unmap()
	fam := familyV4
	if addr.Is6() {
		fam = familyV6
	}

	conn, privileged, err := listenICMP(fam)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrICMPUnavailable, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck,gosec // unblocks ReadFrom
	})
	defer stop()

	var dst net.Addr = &net.UDPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
	if privileged {
		dst = &net.IPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
	}

	id := os.Getpid() & 0xffff
	for seq := 1; seq <= c.count; seq++ {
		msg := icmp.Message{
			Type: fam.echoType,
			Body: &icmp.Echo{ID: id, Seq: seq, Data: icmpPayload},
		}
		wb, err := msg.Marshal(nil)
		if err != nil {
			return Result{}, fmt.Errorf("failed to marshal echo request: %w", err)
		}
		if _, err := conn.WriteTo(wb, dst); err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			// Unreachable networks fail the write; the host cannot answer.
			return Result{Alive: false, Method: MethodICMP}, nil
		}

		alive, err := c.awaitReply(conn, fam, addr, echoMatch{id: id, seq: seq, checkID: privileged})
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if err != nil {
			return Result{}, err
		}
		if alive {
			return Result{Alive: true, Method: MethodICMP}, nil
		}
	}
	return Result{Alive: false, Method: MethodICMP}, nil
}

// echoMatch identifies the reply to one echo request.
type echoMatch struct {
	id  int
	seq int
	// checkID is set on raw sockets. The kernel rewrites the ID on
	// datagram sockets, so there only the sequence number is compared.
	checkID bool
}

// matches reports whether rm answers the request.
func (m echoMatch) matches(fam icmpFamily, rm *icmp.Message) bool {
	if rm.Type != fam.replyType {
		return false
	}
	echo, ok := rm.Body.(*icmp.Echo)
	if !ok || echo.Seq != m.seq {
		return false
	}
	return !m.checkID || echo.ID == m.id
}

// awaitReply reads until an echo reply matching want from addr arrives or
// the per-echo timeout passes. Unrelated ICMP traffic is ignored.
func (c *ICMPChecker) awaitReply(conn *icmp.PacketConn, fam icmpFamily, addr netip.Addr, want echoMatch) (bool, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return false, err
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return false, nil
			}
			return false, err
		}

		if peerAddr(peer) != addr {
			continue
		}
		rm, err := icmp.ParseMessage(fam.proto, buf[:n])
		if err != nil {
			continue
		}
		if want.matches(fam, rm) {
			return true, nil
		}
	}
}

// listenICMP opens an unprivileged ICMP socket, falling back to a raw one.
func listenICMP(fam icmpFamily) (*icmp.PacketConn, bool, error) {
	conn, errUnpriv := icmp.ListenPacket(fam.networks[0], fam.listen)
	if errUnpriv == nil {
		return conn, false, nil
	}
	conn, errPriv := icmp.ListenPacket(fam.networks[1], fam.listen)
	if errPriv == nil {
		return conn, true, nil
	}
	return nil, false, errors.Join(errUnpriv, errPriv)
}

// peerAddr extracts the address of a datagram or raw socket peer.
func peerAddr(a net.Addr) netip.Addr {
	var ip net.IP
	switch p := a.(type) {
	case *net.UDPAddr:
		ip = p.IP
	case *net.IPAddr:
		ip = p.IP
	default:
		return netip.Addr{}
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}
