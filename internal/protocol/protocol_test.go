package protocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/portrecon/internal/model"
)

// endpointFor converts a listener address into an Endpoint.
func endpointFor(t *testing.T, addr string) model.Endpoint {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return model.Endpoint{Host: host, Addr: netip.MustParseAddr(host), Port: port}
}

// fakeServer is a loopback TCP server that hands every connection to handle.
type fakeServer struct {
	ln net.Listener

	mu       sync.Mutex
	requests []string
}

func startFakeServer(t *testing.T, handle func(conn net.Conn, s *fakeServer)) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &fakeServer{ln: ln}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn, s)
			}()
		}
	}()
	return s
}

func (s *fakeServer) record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, line)
}

func (s *fakeServer) firstRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[0]
}

// readRequest reads header lines up to the blank line and records them.
func readRequest(conn net.Conn, s *fakeServer) bool {
	r := bufio.NewReader(conn)
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return false
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	s.record(strings.Join(lines, "\n"))
	return true
}

// readPrompt consumes the banner prompt so that closing the connection
// afterwards does not reset it.
func readPrompt(conn net.Conn) {
	buf := make([]byte, 1)
	conn.Read(buf) //nolint:errcheck
}

// TestHTTPIdentifier tests the HEAD exchange against a real HTTP server.
func TestHTTPIdentifier(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	ep := endpointFor(t, server.Listener.Addr().String())

	t.Run("returns status line", func(t *testing.T) {
		t.Parallel()

		got, ok := NewHTTPIdentifier(&net.Dialer{}).Identify(context.Background(), ep)
		if !ok {
			t.Fatal("expected identification")
		}
		if got != "HTTP/1.1 200 OK" {
			t.Errorf("expected status line, got %q", got)
		}
	})

	t.Run("version only returns version token", func(t *testing.T) {
		t.Parallel()

		got, ok := NewHTTPIdentifier(&net.Dialer{}, WithVersionOnly(true)).Identify(context.Background(), ep)
		if !ok || got != "HTTP/1.1" {
			t.Errorf("expected HTTP/1.1, got %q (ok=%v)", got, ok)
		}
	})

	t.Run("protocol name", func(t *testing.T) {
		t.Parallel()
		if p := NewHTTPIdentifier(&net.Dialer{}).Protocol(); p != "http" {
			t.Errorf("expected http, got %q", p)
		}
	})
}

// TestHTTPIdentifier_Request tests the exact request sent.
func TestHTTPIdentifier_Request(t *testing.T) {
	t.Parallel()

	srv := startFakeServer(t, func(conn net.Conn, s *fakeServer) {
		if readRequest(conn, s) {
			conn.Write([]byte("HTTP/1.0 404 Not Found\r\nServer: test\r\n\r\n")) //nolint:errcheck
		}
	})
	ep := endpointFor(t, srv.ln.Addr().String())

	got, ok := NewHTTPIdentifier(&net.Dialer{}).Identify(context.Background(), ep)
	if !ok || got != "HTTP/1.0 404 Not Found" {
		t.Errorf("expected 404 status line, got %q (ok=%v)", got, ok)
	}

	want := "HEAD / HTTP/1.1\nHost: 127.0.0.1"
	if req := srv.firstRequest(); req != want {
		t.Errorf("expected request %q, got %q", want, req)
	}
}

// TestHTTPSIdentifier tests the TLS variant.
func TestHTTPSIdentifier(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	ep := endpointFor(t, server.Listener.Addr().String())

	roots := x509.NewCertPool()
	roots.AddCert(server.Certificate())

	t.Run("trusted certificate", func(t *testing.T) {
		t.Parallel()

		id := NewHTTPSIdentifier(&net.Dialer{}, WithTLSConfig(&tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}))
		got, ok := id.Identify(context.Background(), ep)
		if !ok || got != "HTTP/1.1 204 No Content" {
			t.Errorf("expected 204 status line, got %q (ok=%v)", got, ok)
		}
		if id.Protocol() != "https" {
			t.Errorf("expected https, got %q", id.Protocol())
		}
	})

	t.Run("untrusted certificate yields nothing", func(t *testing.T) {
		t.Parallel()

		got, ok := NewHTTPSIdentifier(&net.Dialer{}).Identify(context.Background(), ep)
		if ok || got != "" {
			t.Errorf("expected no identification, got %q", got)
		}
	})

	t.Run("plain HTTP server yields nothing", func(t *testing.T) {
		t.Parallel()

		plain := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		t.Cleanup(plain.Close)

		id := NewHTTPSIdentifier(&net.Dialer{}, WithTimeout(500*time.Millisecond))
		if got, ok := id.Identify(context.Background(), endpointFor(t, plain.Listener.Addr().String())); ok {
			t.Errorf("expected no identification, got %q", got)
		}
	})
}

// TestRTSPIdentifier tests the OPTIONS exchange.
func TestRTSPIdentifier(t *testing.T) {
	t.Parallel()

	srv := startFakeServer(t, func(conn net.Conn, s *fakeServer) {
		if readRequest(conn, s) {
			conn.Write([]byte("RTSP/1.0 200 OK\r\nCSeq: 1\r\nPublic: OPTIONS, DESCRIBE, PLAY\r\n\r\n")) //nolint:errcheck
		}
	})
	ep := endpointFor(t, srv.ln.Addr().String())

	got, ok := NewRTSPIdentifier(&net.Dialer{}).Identify(context.Background(), ep)
	if !ok || got != "RTSP/1.0 200 OK" {
		t.Errorf("expected RTSP status line, got %q (ok=%v)", got, ok)
	}

	want := "OPTIONS rtsp://" + ep.HostPort() + " RTSP/1.0\nCSeq: 1"
	if req := srv.firstRequest(); req != want {
		t.Errorf("expected request %q, got %q", want, req)
	}

	got, ok = NewRTSPIdentifier(&net.Dialer{}, WithVersionOnly(true)).Identify(context.Background(), ep)
	if !ok || got != "RTSP/1.0" {
		t.Errorf("expected RTSP/1.0, got %q", got)
	}
}

// TestBannerIdentifier tests the generic banner grab.
func TestBannerIdentifier(t *testing.T) {
	t.Parallel()

	t.Run("returns trimmed banner", func(t *testing.T) {
		t.Parallel()

		srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
			readPrompt(conn)
			conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n")) //nolint:errcheck
		})
		got, ok := NewBannerIdentifier(&net.Dialer{}).Identify(context.Background(), endpointFor(t, srv.ln.Addr().String()))
		if !ok || got != "SSH-2.0-OpenSSH_9.6" {
			t.Errorf("expected SSH banner, got %q (ok=%v)", got, ok)
		}
	})

	t.Run("sends a newline prompt", func(t *testing.T) {
		t.Parallel()

		srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
			buf := make([]byte, 8)
			n, err := conn.Read(buf)
			if err != nil || string(buf[:n]) != "\n" {
				return
			}
			conn.Write([]byte("220 ready\n")) //nolint:errcheck
		})
		got, ok := NewBannerIdentifier(&net.Dialer{}).Identify(context.Background(), endpointFor(t, srv.ln.Addr().String()))
		if !ok || got != "220 ready" {
			t.Errorf("expected banner after prompt, got %q (ok=%v)", got, ok)
		}
	})

	t.Run("whitespace reply yields nothing", func(t *testing.T) {
		t.Parallel()

		srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
			readPrompt(conn)
			conn.Write([]byte(" \r\n")) //nolint:errcheck
		})
		if got, ok := NewBannerIdentifier(&net.Dialer{}).Identify(context.Background(), endpointFor(t, srv.ln.Addr().String())); ok {
			t.Errorf("expected no identification, got %q", got)
		}
	})

	t.Run("silent service times out", func(t *testing.T) {
		t.Parallel()

		srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
			time.Sleep(time.Second)
		})
		start := time.Now()
		id := NewBannerIdentifier(&net.Dialer{}, WithTimeout(100*time.Millisecond))
		if got, ok := id.Identify(context.Background(), endpointFor(t, srv.ln.Addr().String())); ok {
			t.Errorf("expected no identification, got %q", got)
		}
		if time.Since(start) > 800*time.Millisecond {
			t.Error("expected identification to respect the timeout")
		}
	})

	t.Run("latin-1 bytes are decoded", func(t *testing.T) {
		t.Parallel()

		srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
			readPrompt(conn)
			conn.Write([]byte("caf\xe9 server\n")) //nolint:errcheck
		})
		got, ok := NewBannerIdentifier(&net.Dialer{}).Identify(context.Background(), endpointFor(t, srv.ln.Addr().String()))
		if !ok || got != "café server" {
			t.Errorf("expected decoded banner, got %q", got)
		}
	})

	t.Run("closed port yields nothing", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		ep := endpointFor(t, ln.Addr().String())
		ln.Close() //nolint:errcheck

		if got, ok := NewBannerIdentifier(&net.Dialer{}).Identify(context.Background(), ep); ok {
			t.Errorf("expected no identification, got %q", got)
		}
	})
}

// TestIdentifierCancellation tests that cancelling the context abandons a
// blocked read well before the I/O timeout.
func TestIdentifierCancellation(t *testing.T) {
	t.Parallel()

	srv := startFakeServer(t, func(conn net.Conn, _ *fakeServer) {
		time.Sleep(3 * time.Second)
	})
	ep := endpointFor(t, srv.ln.Addr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	id := NewBannerIdentifier(&net.Dialer{}, WithTimeout(5*time.Second))
	if _, ok := id.Identify(ctx, ep); ok {
		t.Error("expected no identification")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected prompt return after cancellation, took %v", elapsed)
	}
}

// TestSelector tests port to identifier selection.
func TestSelector(t *testing.T) {
	t.Parallel()

	sel := NewSelector(&net.Dialer{})
	tests := []struct {
		port int
		want string
	}{
		{port: 80, want: "http"},
		{port: 443, want: "https"},
		{port: 554, want: "rtsp"},
		{port: 22, want: "banner"},
		{port: 8080, want: "banner"},
		{port: 8443, want: "banner"},
	}

	for _, tt := range tests {
		if got := sel.ForPort(tt.port).Protocol(); got != tt.want {
			t.Errorf("ForPort(%d) = %q, want %q", tt.port, got, tt.want)
		}
	}
}

// TestHelpers tests line and token helpers.
func TestHelpers(t *testing.T) {
	t.Parallel()

	if got := firstLine("HTTP/1.1 200 OK\r\nServer: x\r\n"); got != "HTTP/1.1 200 OK" {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("no newline"); got != "no newline" {
		t.Errorf("firstLine = %q", got)
	}
	if got := versionToken("RTSP/1.0 200 OK"); got != "RTSP/1.0" {
		t.Errorf("versionToken = %q", got)
	}
	if got := versionToken("   "); got != "" {
		t.Errorf("versionToken = %q", got)
	}
	if got := hostHeader("::1"); got != "[::1]" {
		t.Errorf("hostHeader = %q", got)
	}
	if got := hostHeader("example.com"); got != "example.com" {
		t.Errorf("hostHeader = %q", got)
	}
	if got := decode([]byte("plain")); got != "plain" {
		t.Errorf("decode = %q", got)
	}
}
