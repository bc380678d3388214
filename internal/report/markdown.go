package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/portrecon/internal/log"
	"github.com/nao1215/portrecon/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, report, summary)
	w.writeAlert(md, report, summary)
	if report.Session != nil {
		w.writePorts(md, report.Session, summary)
		w.writePieChart(md, summary)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport, summary *Summary) {
	md.H1("Port Scan Report: " + report.Target.Host)
	md.PlainText("")

	rows := [][]string{
		{"Target", "`" + report.Target.Host + "`"},
		{"Address", "`" + report.Target.Addr.String() + "`"},
		{"Port Range", fmt.Sprintf("%d-%d", report.Target.StartPort, report.Target.EndPort)},
		{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
		{"Liveness", livenessText(report)},
		{"Status", statusText(summary)},
	}
	if report.Session != nil {
		rows = append(rows, []string{"Duration", formatElapsed(report.Session.Elapsed)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func livenessText(report *model.ScanReport) string {
	switch {
	case report.LivenessMethod == "":
		return "-"
	case report.HostUp:
		return "up (" + report.LivenessMethod + ")"
	default:
		return "down (" + report.LivenessMethod + ")"
	}
}

// statusText returns the status text based on the outcome.
func statusText(summary *Summary) string {
	switch summary.Outcome {
	case OutcomeHostDown:
		return "⛔ Host seems down"
	case OutcomeFailed:
		return "❌ Failed"
	case OutcomeInterrupted:
		return "⚠️ Interrupted (partial results)"
	case OutcomeTimedOut:
		return "⚠️ Timed Out (partial results)"
	case OutcomeAllClosed:
		return "✅ Complete, all ports closed"
	default:
		return "✅ Complete"
	}
}

// writeAlert writes an alert matching the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport, summary *Summary) {
	switch summary.Outcome {
	case OutcomeHostDown:
		md.Caution("The host did not answer the liveness check; no ports were scanned.")
	case OutcomeFailed:
		md.Cautionf("The scan failed: %s", report.ErrorMessage)
	case OutcomeInterrupted:
		md.Warningf("The scan was interrupted; %d port(s) were not scanned.", summary.Unscanned)
	case OutcomeTimedOut:
		md.Warningf("The scan deadline was reached; %d port(s) were not scanned.", summary.Unscanned)
	case OutcomeAllClosed:
		md.Tip("All ports are closed or filtered.")
	default:
		md.Importantf("%d open port(s) found.", summary.Open)
	}
	md.PlainText("")
}

// writePorts writes the table of open ports.
func (w *MarkdownWriter) writePorts(md *markdown.Markdown, session *model.ScanSession, summary *Summary) {
	md.H2("Open Ports")
	md.PlainText("")

	open := session.OpenPorts()
	if len(open) == 0 {
		md.PlainText("No open ports detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(open))
	for i, r := range open {
		version := "-"
		if r.HasIdentification() {
			version = "`" + truncateString(cleanCell(r.Identification), 80) + "`"
		}
		rows[i] = []string{
			strconv.Itoa(r.Port) + "/tcp",
			r.State.String(),
			r.Service,
			version,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Port", "State", "Service", "Version"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainTextf("Not shown: %d closed|filtered port(s).", summary.Closed)
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of port dispositions.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Port Dispositions"),
		piechart.WithShowData(true),
	)

	if summary.Open > 0 {
		chart.LabelAndIntValue("Open", uint64(summary.Open))
	}
	if summary.Closed > 0 {
		chart.LabelAndIntValue("Closed or filtered", uint64(summary.Closed))
	}
	if summary.Unscanned > 0 {
		chart.LabelAndIntValue("Not scanned", uint64(summary.Unscanned))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [portrecon](https://github.com/nao1215/portrecon)*")
}

// cleanCell makes s safe inside a table cell.
func cleanCell(s string) string {
	return strings.ReplaceAll(log.Clean(s), "|", "\\|")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
