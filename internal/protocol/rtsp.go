package protocol

import (
	"context"
	"fmt"

	"github.com/nao1215/portrecon/internal/model"
	"golang.org/x/net/proxy"
)

// RTSPIdentifier sends an RTSP OPTIONS request and reports the first
// response line (e.g. "RTSP/1.0 200 OK").
type RTSPIdentifier struct {
	dialer proxy.ContextDialer
	opts   options
}

// NewRTSPIdentifier creates an RTSP identifier.
func NewRTSPIdentifier(dialer proxy.ContextDialer, opts ...Option) *RTSPIdentifier {
	return &RTSPIdentifier{dialer: dialer, opts: newOptions(opts)}
}

// Protocol returns "rtsp".
func (r *RTSPIdentifier) Protocol() string {
	return "rtsp"
}

// Identify performs the OPTIONS exchange.
func (r *RTSPIdentifier) Identify(ctx context.Context, ep model.Endpoint) (string, bool) {
	conn, err := dial(ctx, r.dialer, ep, r.opts.timeout)
	if err != nil {
		r.opts.logger.Debug("identification connect failed", "protocol", "rtsp", "port", ep.Port, "error", err)
		return "", false
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	request := fmt.Sprintf("OPTIONS rtsp://%s RTSP/1.0\r\nCSeq: 1\r\n\r\n", ep.HostPort())
	resp, err := exchange(conn, []byte(request), r.opts.timeout, true)
	if err != nil {
		if !isCancellation(ctx, err) {
			r.opts.logger.Debug("no RTSP response", "port", ep.Port, "error", err)
		}
		return "", false
	}

	line := firstLine(decode(resp))
	if r.opts.versionOnly {
		line = versionToken(line)
	}
	return line, line != ""
}
