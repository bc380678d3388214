package protocol

import (
	"context"
	"strings"

	"github.com/nao1215/portrecon/internal/model"
	"golang.org/x/net/proxy"
)

// bannerPrompt is sent to coax a response from services that wait for the
// client to speak first.
var bannerPrompt = []byte("\n")

// BannerIdentifier sends a single newline and reports whatever the service
// answers, trimmed.
type BannerIdentifier struct {
	dialer proxy.ContextDialer
	opts   options
}

// NewBannerIdentifier creates a generic banner identifier.
func NewBannerIdentifier(dialer proxy.ContextDialer, opts ...Option) *BannerIdentifier {
	return &BannerIdentifier{dialer: dialer, opts: newOptions(opts)}
}

// Protocol returns "banner".
func (b *BannerIdentifier) Protocol() string {
	return "banner"
}

// Identify grabs up to MaxResponseSize bytes of banner. An empty or failed
// read yields no identification.
func (b *BannerIdentifier) Identify(ctx context.Context, ep model.Endpoint) (string, bool) {
	conn, err := dial(ctx, b.dialer, ep, b.opts.timeout)
	if err != nil {
		b.opts.logger.Debug("identification connect failed", "protocol", "banner", "port", ep.Port, "error", err)
		return "", false
	}
	defer conn.Close()
	stop := closeOnCancel(ctx, conn)
	defer stop()

	resp, err := exchange(conn, bannerPrompt, b.opts.timeout, false)
	if err != nil {
		if !isCancellation(ctx, err) {
			b.opts.logger.Debug("no banner", "port", ep.Port, "error", err)
		}
		return "", false
	}

	banner := strings.TrimSpace(decode(resp))
	return banner, banner != ""
}
