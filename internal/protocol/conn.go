package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/portrecon/internal/model"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding/charmap"
)

// dial opens a fresh TCP connection to ep bounded by timeout and ctx.
func dial(ctx context.Context, dialer proxy.ContextDialer, ep model.Endpoint, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return dialer.DialContext(ctx, "tcp", ep.Address())
}

// closeOnCancel closes conn as soon as ctx is done so that blocked reads
// and writes return. The returned function detaches the hook.
func closeOnCancel(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck,gosec // unblocks in-flight I/O
	})
}

// exchange writes request and reads the response. Each operation gets its
// own deadline. When untilNewline is set, reads continue until a line
// break, MaxResponseSize bytes or an error; otherwise a single read is made.
// Bytes received before an error are returned without the error.
func exchange(conn net.Conn, request []byte, timeout time.Duration, untilNewline bool) ([]byte, error) {
	if len(request) > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		if _, err := conn.Write(request); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, MaxResponseSize)
	total := 0
	for total < len(buf) {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			if total > 0 {
				break
			}
			return nil, err
		}
		if !untilNewline || bytes.IndexByte(buf[:total], '\n') >= 0 {
			break
		}
	}

	if total == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return buf[:total], nil
}

// decode converts raw bytes to a string. Valid UTF-8 is kept as is;
// anything else is decoded as ISO-8859-1, which maps every byte.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(out)
}

// firstLine returns the first line of s without trailing whitespace.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// versionToken returns the first whitespace separated token of line.
func versionToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// isCancellation reports whether err stems from ctx cancellation.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
