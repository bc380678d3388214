// Package log provides sanitized structured logging built on log/slog.
//
// Scan logs routinely carry text received from the network: service
// banners, HTTP status lines and RTSP replies. SanitizingHandler wraps any
// slog.Handler and, before a record is written:
//   - strips ANSI escape sequences and control characters from strings
//   - truncates long values (DefaultMaxValueLen)
//   - masks credential-like keys and proxy URLs containing a password
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Debug("banner received", "port", 22, "banner", banner)
package log
