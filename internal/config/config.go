package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "portrecon"

	// DefaultPorts is the inclusive port range scanned when none is given.
	DefaultPorts = "1-10000"

	// DefaultConnectTimeout bounds a single TCP connect. Filtered ports never
	// answer, so this value dominates the cost of scanning a quiet host.
	DefaultConnectTimeout = 1 * time.Second

	// DefaultProbeTimeout bounds each read or write of an identification probe.
	DefaultProbeTimeout = 1 * time.Second

	// DefaultScanDeadline is the wall-clock budget for the whole port scan of
	// one target. Ports not reached before it expires are left unreported.
	DefaultScanDeadline = 60 * time.Second

	// DefaultGracePeriod is how long the engine waits for workers to observe
	// cancellation after the deadline before returning partial results.
	DefaultGracePeriod = 2 * time.Second

	// DefaultPingCount is the number of ICMP echo requests sent per target.
	DefaultPingCount = 3

	// DefaultPingTimeout is how long to wait for each echo reply.
	DefaultPingTimeout = 1 * time.Second

	// DefaultBatchSize is the number of targets scanned concurrently.
	// Each target already runs a full worker pool, so the default is serial.
	DefaultBatchSize = 1
)

// Log formats accepted by Config.LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultWorkers returns the default worker pool size: the number of
// logical CPUs, never less than one.
func DefaultWorkers() int {
	return max(runtime.NumCPU(), 1)
}

// Config holds all configuration options for portrecon.
// It is populated from CLI flags and the optional config file, then passed
// down explicitly; there is no global configuration state.
type Config struct {
	// Targets is the list of hosts to scan (IPv4, IPv6 or resolvable names).
	Targets []string

	// Ports is the inclusive port range in "start-end" or single-port form.
	Ports string

	// Workers is the size of the per-target worker pool.
	Workers int

	// ConnectTimeout bounds each TCP connect attempt.
	ConnectTimeout time.Duration

	// ProbeTimeout bounds each read or write performed by an identifier.
	ProbeTimeout time.Duration

	// ScanDeadline is the global deadline for one target's port scan.
	ScanDeadline time.Duration

	// GracePeriod bounds how long the engine waits for workers after the
	// deadline has fired.
	GracePeriod time.Duration

	// ServicesFile is the path to an nmap-services style table.
	// If empty, the usual locations are searched.
	ServicesFile string

	// SkipLiveness treats every target as up and skips the liveness check.
	SkipLiveness bool

	// PingCount is the number of ICMP echo requests per target.
	PingCount int

	// PingTimeout bounds the wait for each echo reply.
	PingTimeout time.Duration

	// PingPorts are the ports tried by the TCP liveness check.
	// Empty means the checker's own defaults.
	PingPorts []int

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	// When set every connection, including the liveness check, goes through it.
	ProxyAddress string

	// VersionOnly reduces HTTP, HTTPS and RTSP identification to the
	// protocol version token (for example "HTTP/1.1").
	VersionOnly bool

	// InsecureTLS disables certificate verification for the HTTPS probe.
	InsecureTLS bool

	// Verbose enables debug level logging.
	Verbose bool

	// LogFormat selects the log encoding on stderr: "text" or "json".
	LogFormat string

	// BatchSize is the number of targets scanned concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the default locations are searched.
	ConfigFilePath string

	// TargetConfigs holds per-target overrides loaded from the config file.
	TargetConfigs *File

	// JSONReport selects the JSON report writer.
	JSONReport bool

	// MarkdownReport selects the Markdown report writer.
	MarkdownReport bool

	// ReportFile is the output file path. When empty, stdout is used.
	ReportFile string

	// pinned records options set explicitly on the command line.
	pinned map[string]bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Ports:          DefaultPorts,
		Workers:        DefaultWorkers(),
		ConnectTimeout: DefaultConnectTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		ScanDeadline:   DefaultScanDeadline,
		GracePeriod:    DefaultGracePeriod,
		PingCount:      DefaultPingCount,
		PingTimeout:    DefaultPingTimeout,
		BatchSize:      DefaultBatchSize,
		LogFormat:      LogFormatText,
	}
}

// XDGDataDir returns the XDG data directory for portrecon.
// On Linux: ~/.local/share/portrecon
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for portrecon.
// On Linux: ~/.config/portrecon
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if _, _, err := ParsePortRange(c.Ports); err != nil {
		return err
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.ConnectTimeout <= 0 || c.ProbeTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.ScanDeadline <= 0 {
		return ErrInvalidDeadline
	}

	// Zero grace means "return immediately after the deadline".
	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}

	if !c.SkipLiveness && (c.PingCount <= 0 || c.PingTimeout <= 0) {
		return ErrInvalidPing
	}

	if !c.SkipLiveness {
		for _, p := range c.PingPorts {
			if p < 1 || p > MaxPort {
				return fmt.Errorf("%w: %d", ErrInvalidPingPorts, p)
			}
		}
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	return nil
}
