package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/portrecon/internal/log"
	"github.com/nao1215/portrecon/internal/model"
)

// Fixed lines of the text report.
const (
	TableHeader     = "PORT     STATE SERVICE VERSION"
	AllClosedLine   = "all ports closed"
	HostDownLine    = "Host seems down"
	timedOutFormat  = "Scan timed out after %s (partial results)"
	completedFormat = "Scan completed in %s"
)

// SimpleWriter outputs the nmap style text report.
//
//	PORT     STATE SERVICE VERSION
//	22/tcp   open  ssh SSH-2.0-OpenSSH_9.6
//	Scan completed in 1.204s
//
// Only open ports are listed. When the whole range was scanned and nothing
// was open the table is replaced by "all ports closed".
type SimpleWriter struct {
	baseWriter

	// verbose adds the target line and closed port counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in the text format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder
	summary := NewSummary(report)

	if w.verbose {
		w.writeTarget(&sb, report)
	}

	switch summary.Outcome {
	case OutcomeHostDown:
		sb.WriteString(HostDownLine + "\n")
		return w.output.Write([]byte(sb.String()))
	case OutcomeFailed:
		fmt.Fprintf(&sb, "Scan of %s failed: %s\n", report.Target.String(), report.ErrorMessage)
		return w.output.Write([]byte(sb.String()))
	case OutcomeAllClosed:
		sb.WriteString(AllClosedLine + "\n")
	default:
		w.writeTable(&sb, report.Session)
	}

	if w.verbose && summary.Closed > 0 {
		fmt.Fprintf(&sb, "Not shown: %d closed|filtered ports\n", summary.Closed)
	}

	switch summary.Outcome {
	case OutcomeTimedOut:
		fmt.Fprintf(&sb, timedOutFormat+"\n", deadlineOf(report.Session))
		if w.verbose {
			fmt.Fprintf(&sb, "Not scanned: %d ports\n", summary.Unscanned)
		}
	case OutcomeInterrupted:
		fmt.Fprintf(&sb, "Scan interrupted: %s (partial results)\n", report.ErrorMessage)
	}

	fmt.Fprintf(&sb, completedFormat+"\n", formatElapsed(report.Session.Elapsed))

	return w.output.Write([]byte(sb.String()))
}

// writeTarget writes the line naming the target and range.
func (w *SimpleWriter) writeTarget(sb *strings.Builder, report *model.ScanReport) {
	fmt.Fprintf(sb, "Scan report for %s, ports %d-%d\n",
		report.Target.String(), report.Target.StartPort, report.Target.EndPort)
	if report.LivenessMethod != "" && report.HostUp {
		fmt.Fprintf(sb, "Host is up (%s).\n", report.LivenessMethod)
	}
}

// writeTable writes the header and one line per open port.
func (w *SimpleWriter) writeTable(sb *strings.Builder, session *model.ScanSession) {
	sb.WriteString(TableHeader + "\n")
	for _, r := range session.OpenPorts() {
		sb.WriteString(FormatLine(r))
		sb.WriteString("\n")
	}
}

// FormatLine formats one open port as "<port>/tcp   open  <service>[ <identification>]".
// Control characters in the identification are replaced by spaces so that a
// multi-line banner stays on one line and cannot drive the terminal.
func FormatLine(r model.ProbeResult) string {
	line := fmt.Sprintf("%d/tcp   open  %s", r.Port, r.Service)
	if r.HasIdentification() {
		line += " " + log.Clean(r.Identification)
	}
	return line
}

// deadlineOf returns the configured scan deadline of session.
func deadlineOf(session *model.ScanSession) time.Duration {
	return session.Deadline.Sub(session.StartedAt)
}

// formatElapsed rounds d for display.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
