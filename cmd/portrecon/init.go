package main

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/portrecon/internal/config"
)

//go:embed templates/portrecon.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .portrecon file with the default scan settings",
		Long: `Init writes a .portrecon file holding the scan settings that portrecon
uses when no flag overrides them: the port range, the per-target deadline,
the connect and identification timeouts, the liveness check and the
version-only switch.

Below the defaults the file carries commented per-target overrides. A
target entry is keyed by the host exactly as it is given to "portrecon
scan", and any flag passed on the command line still wins over the file.

Examples:
  # Write .portrecon in the current directory
  portrecon init

  # Write the file scan finds under $XDG_CONFIG_HOME
  portrecon init -o ~/.config/portrecon/config.yaml

  # Replace an existing file
  portrecon init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Where to write the configuration file")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing file")

	return cmd
}

// runInitCmd writes the template and prints the defaults it holds.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/portrecon.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	// Reading the file back through the loader shows exactly what a scan
	// will pick up from it.
	written, err := config.LoadConfigFile(outputPath)
	if err != nil {
		return fmt.Errorf("written configuration does not load: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n\n", outputPath)
	printScanDefaults(out, written.Defaults)
	fmt.Fprintln(out, "\nAdd hosts under \"targets:\" to give them their own range or deadline.")
	return nil
}

// printScanDefaults lists the settings the file applies to every target.
// Settings left unset in the file fall back to the scan flag defaults.
func printScanDefaults(w io.Writer, tc config.TargetConfig) {
	ports := tc.Ports
	if ports == "" {
		ports = config.DefaultPorts
	}
	workers := fmt.Sprintf("%d (one per CPU)", config.DefaultWorkers())
	if tc.Workers > 0 {
		workers = fmt.Sprint(tc.Workers)
	}
	deadline := durationOr(tc.Deadline, config.DefaultScanDeadline)
	connect := durationOr(tc.ConnectTimeout, config.DefaultConnectTimeout)
	identify := durationOr(tc.ProbeTimeout, config.DefaultProbeTimeout)

	liveness := "ICMP echo, then TCP connect"
	if tc.SkipPing != nil && *tc.SkipPing {
		liveness = "skipped"
	}

	fmt.Fprintln(w, "Scan defaults:")
	fmt.Fprintf(w, "  ports            %s\n", ports)
	fmt.Fprintf(w, "  workers          %s\n", workers)
	fmt.Fprintf(w, "  deadline         %s\n", deadline)
	fmt.Fprintf(w, "  connect timeout  %s\n", connect)
	fmt.Fprintf(w, "  probe timeout    %s\n", identify)
	fmt.Fprintf(w, "  liveness         %s\n", liveness)
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
