package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/portrecon/internal/config"
)

// NewRootCmd creates the root command for portrecon.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portrecon",
		Short: "Concurrent TCP port scanner with service identification",
		Long: `portrecon checks whether a host is up, scans a range of its TCP ports
with a pool of workers under a global deadline, and identifies what runs on
each open port (HTTP/HTTPS status line, RTSP reply or service banner).

Output follows the familiar nmap layout:
  PORT     STATE SERVICE VERSION
  22/tcp   open  ssh SSH-2.0-OpenSSH_9.6`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText, "Log format on stderr (text or json)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
