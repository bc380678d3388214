package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/portrecon/internal/catalog"
	"github.com/nao1215/portrecon/internal/config"
	"github.com/nao1215/portrecon/internal/dialer"
	"github.com/nao1215/portrecon/internal/liveness"
	"github.com/nao1215/portrecon/internal/log"
	"github.com/nao1215/portrecon/internal/model"
	"github.com/nao1215/portrecon/internal/pipeline"
	"github.com/nao1215/portrecon/internal/protocol"
	"github.com/nao1215/portrecon/internal/report"
	"github.com/nao1215/portrecon/internal/scanner"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <target> [target...]",
		Short: "Scan the TCP ports of one or more hosts",
		Long: `Scan checks that each target is up, connects to every port of the
requested range with a pool of workers, and identifies the service behind
each open port.

Identification depends on the port:
- 80: HTTP status line
- 443: HTTPS status line (certificate verified unless --insecure)
- 554: RTSP OPTIONS reply
- anything else: the first line the service sends

The whole port scan of one target is bounded by --deadline. Ports not
reached in time are left out and the report says the results are partial.

Examples:
  # Scan the first 10000 ports of a host
  portrecon scan 192.0.2.10

  # Scan every port with 256 workers and a 5 minute budget
  portrecon scan -p 1-65535 -w 256 -d 5m scanme.example.org

  # Scan through a SOCKS5 proxy without the ICMP check
  portrecon scan --proxy 127.0.0.1:9050 -P 192.0.2.10

  # Write a Markdown report
  portrecon scan -m -o report.md 192.0.2.10 192.0.2.11

Configuration file (.portrecon) example:
  defaults:
    ports: "1-1024"
  targets:
    192.0.2.10:
      ports: "1-65535"
      deadline: 5m`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Scan range and concurrency
	cmd.Flags().StringP("ports", "p", config.DefaultPorts,
		"Port range to scan (start-end or a single port)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers(),
		"Number of concurrent port probes per target")

	// Timing
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout,
		"Timeout for each TCP connect")
	cmd.Flags().Duration("probe-timeout", config.DefaultProbeTimeout,
		"Timeout for each read or write while identifying a service")
	cmd.Flags().DurationP("deadline", "d", config.DefaultScanDeadline,
		"Wall-clock budget for the port scan of one target")
	cmd.Flags().Duration("grace", config.DefaultGracePeriod,
		"How long to wait for in-flight probes after the deadline")

	// Identification
	cmd.Flags().StringP("services", "s", "",
		"Service table in nmap-services format (default: search usual locations)")
	cmd.Flags().Bool("version-only", false,
		"Report only the protocol version for HTTP, HTTPS and RTSP")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification for the HTTPS probe")

	// Liveness
	cmd.Flags().BoolP("skip-ping", "P", false,
		"Treat every target as up and skip the liveness check")
	cmd.Flags().Int("ping-count", config.DefaultPingCount,
		"Number of ICMP echo requests per target")
	cmd.Flags().IntSlice("ping-ports", liveness.DefaultTCPPorts,
		"Ports tried by the TCP liveness check")

	// Transport
	cmd.Flags().String("proxy", "",
		"Route every connection through a SOCKS5 proxy (host:port)")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .portrecon in current, XDG config or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, net.DefaultResolver, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFormatFlag retrieves the log format from the command or its parent.
func getLogFormatFlag(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			return config.LogFormatText
		}
	}
	return format
}

// newLogger builds the stderr logger in the configured format.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == config.LogFormatJSON {
		return log.NewJSONLogger(w, cfg.Verbose)
	}
	return log.NewLogger(w, cfg.Verbose)
}

// pinnedFlags maps flag names to the config file keys they override.
var pinnedFlags = map[string]string{
	"ports":           config.KeyPorts,
	"workers":         config.KeyWorkers,
	"deadline":        config.KeyDeadline,
	"connect-timeout": config.KeyConnectTimeout,
	"probe-timeout":   config.KeyProbeTimeout,
	"skip-ping":       config.KeySkipPing,
	"version-only":    config.KeyVersionOnly,
	"ping-ports":      config.KeyPingPorts,
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Ports, err = flags.GetString("ports"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = flags.GetDuration("connect-timeout"); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = flags.GetDuration("probe-timeout"); err != nil {
		return nil, err
	}
	if cfg.ScanDeadline, err = flags.GetDuration("deadline"); err != nil {
		return nil, err
	}
	if cfg.GracePeriod, err = flags.GetDuration("grace"); err != nil {
		return nil, err
	}
	if cfg.ServicesFile, err = flags.GetString("services"); err != nil {
		return nil, err
	}
	if cfg.VersionOnly, err = flags.GetBool("version-only"); err != nil {
		return nil, err
	}
	if cfg.InsecureTLS, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.SkipLiveness, err = flags.GetBool("skip-ping"); err != nil {
		return nil, err
	}
	if cfg.PingCount, err = flags.GetInt("ping-count"); err != nil {
		return nil, err
	}
	if cfg.PingPorts, err = flags.GetIntSlice("ping-ports"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFormat = getLogFormatFlag(cmd)

	for flag, key := range pinnedFlags {
		if flags.Changed(flag) {
			cfg.Pin(key)
		}
	}

	// An explicit --config must exist; otherwise a missing file means
	// "no overrides".
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.TargetConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.TargetConfigs = &config.File{
			Targets: make(map[string]config.TargetConfig),
		}
	}

	cfg.Targets = args
	return cfg, nil
}

// plannedTarget is a validated target together with its effective settings.
type plannedTarget struct {
	target model.Target
	cfg    *config.Config
}

// planTargets validates and resolves every target before anything is scanned.
// The first invalid target aborts the whole run.
func planTargets(ctx context.Context, cfg *config.Config, r hostResolver) ([]plannedTarget, error) {
	plans := make([]plannedTarget, 0, len(cfg.Targets))
	for _, host := range cfg.Targets {
		tcfg := cfg.ForTarget(host)
		if err := tcfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration error for %s: %w", host, err)
		}

		start, end, err := config.ParsePortRange(tcfg.Ports)
		if err != nil {
			return nil, fmt.Errorf("configuration error for %s: %w", host, err)
		}

		addr, err := resolveHost(ctx, r, host)
		if err != nil {
			return nil, err
		}

		// Brackets only delimit IPv6 on the command line.
		name := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		plans = append(plans, plannedTarget{
			target: model.NewTarget(name, addr, start, end),
			cfg:    tcfg,
		})
	}
	return plans, nil
}

// runScan scans every target and writes one report per target to out,
// or to the configured report file.
func runScan(ctx context.Context, cfg *config.Config, r hostResolver, out io.Writer, logger *slog.Logger) error {
	plans, err := planTargets(ctx, cfg, r)
	if err != nil {
		return err
	}

	d, err := dialer.New(cfg.ProxyAddress)
	if err != nil {
		return fmt.Errorf("failed to set up dialer: %w", err)
	}
	if d.UsesProxy() {
		if status := d.CheckProxy(ctx); status != dialer.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, status.Error())
		}
		logger.Info("proxy connection verified", "address", d.ProxyAddress())
	}

	services := catalog.LoadOrEmpty(catalog.Find(cfg.ServicesFile), logger)

	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"services", services.Len(),
	)

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg, output, len(plans) > 1)

	byHost := make(map[string]*config.Config, len(plans))
	targets := make([]model.Target, 0, len(plans))
	for _, p := range plans {
		byHost[p.target.Host] = p.cfg
		targets = append(targets, p.target)
	}

	bp := pipeline.NewBatchProcessor(
		func(target model.Target) *pipeline.Pipeline {
			return createPipelineForTarget(d, services, byHost[target.Host], logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, targets, func(scanReport *model.ScanReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if scanReport.Error != nil && !errors.Is(scanReport.Error, model.ErrHostDown) {
			failed++
		}
		if _, err := writer.Write(scanReport); err != nil {
			logger.Error("report failed", "target", scanReport.Target.String(), "error", err)
		}
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d target(s) failed", failed, len(targets))
	}
	return nil
}

// newChecker builds the liveness check for one target. Through a proxy
// ICMP cannot reach the target, so only the TCP check is used.
func newChecker(cfg *config.Config, d *dialer.Dialer, logger *slog.Logger) liveness.Checker {
	if cfg.SkipLiveness {
		return liveness.Always{}
	}

	opts := []liveness.TCPOption{liveness.WithTCPTimeout(cfg.ConnectTimeout)}
	if len(cfg.PingPorts) > 0 {
		opts = append(opts, liveness.WithTCPPorts(cfg.PingPorts...))
	}
	tcp := liveness.NewTCPChecker(d, opts...)
	if d.UsesProxy() {
		return liveness.NewChain(logger, tcp)
	}

	icmp := liveness.NewICMPChecker(
		liveness.WithPingCount(cfg.PingCount),
		liveness.WithPingTimeout(cfg.PingTimeout),
	)
	return liveness.NewChain(logger, icmp, tcp)
}

// createPipelineForTarget creates a pipeline with the given configuration.
func createPipelineForTarget(d *dialer.Dialer, services *catalog.Catalog, cfg *config.Config, logger *slog.Logger) *pipeline.Pipeline {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.InsecureTLS {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec // Explicitly requested with --insecure
	}

	selector := protocol.NewSelector(d,
		protocol.WithTimeout(cfg.ProbeTimeout),
		protocol.WithVersionOnly(cfg.VersionOnly),
		protocol.WithTLSConfig(tlsConfig),
		protocol.WithLogger(logger),
	)

	prober := scanner.NewProber(d,
		scanner.WithConnectTimeout(cfg.ConnectTimeout),
		scanner.WithCatalog(services),
		scanner.WithSelector(selector),
		scanner.WithProberLogger(logger),
	)

	engine := scanner.NewEngine(prober,
		scanner.WithWorkers(cfg.Workers),
		scanner.WithDeadline(cfg.ScanDeadline),
		scanner.WithGracePeriod(cfg.GracePeriod),
		scanner.WithLogger(logger),
	)

	return pipeline.DefaultPipeline(newChecker(cfg, d, logger), engine, pipeline.WithLogger(logger))
}

// newReportWriter selects the report format. Text reports name the target
// when more than one host is scanned.
func newReportWriter(cfg *config.Config, output io.Writer, multiTarget bool) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose || multiTarget))
	}
}

// openOutput returns the report destination: the report file when set,
// stdout otherwise.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list reachable services, so only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
