package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/portrecon/internal/model"
)

// JSONWriter writes one JSON document per report, each ending in a newline.
// Identifications are remote text, so HTML characters in them are written
// as is rather than escaped.
type JSONWriter struct {
	baseWriter

	// prefix and indent are passed to json.Encoder.SetIndent.
	// Both empty means compact output, one report per line.
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent indents nested values with indent, starting every line after
// the first with prefix.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.encode(report)
}

// encode renders v completely before writing, so a marshal failure never
// leaves half a document on the output.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(v); err != nil {
		return 0, fmt.Errorf("failed to encode report: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport wraps a report with the tool version and its summary.
type JSONReport struct {
	// Version is the portrecon version that generated this report.
	Version string `json:"version"`

	// Summary is the condensed outcome for quick access.
	Summary *Summary `json:"summary"`

	// Report is the full scan report.
	Report *model.ScanReport `json:"report"`
}

// NewJSONReport builds the envelope for report.
func NewJSONReport(report *model.ScanReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}

// FullJSONWriter writes each report inside a JSONReport envelope.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a FullJSONWriter stamping reports with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped in its envelope.
func (w *FullJSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.encode(NewJSONReport(report, w.version))
}
