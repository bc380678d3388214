package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/portrecon/internal/model"
)

var testStart = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestReport creates a completed report with two open ports.
func createTestReport() *model.ScanReport {
	target := model.NewTarget("scanme.example", netip.MustParseAddr("192.0.2.10"), 1, 100)
	report := model.NewScanReport(target)
	report.DateScanned = testStart
	report.HostUp = true
	report.LivenessMethod = "icmp"
	report.State = model.ScanCompleted

	session := model.NewScanSession(target, testStart, testStart.Add(60*time.Second))
	for port := 1; port <= 100; port++ {
		switch port {
		case 22:
			session.Add(model.ProbeResult{Port: 22, State: model.StateOpen, Service: "ssh", Identification: "SSH-2.0-OpenSSH_9.6"})
		case 80:
			session.Add(model.ProbeResult{Port: 80, State: model.StateOpen, Service: "http"})
		default:
			session.Add(model.ProbeResult{Port: port, State: model.StateClosedOrFiltered, Service: model.UnknownService})
		}
	}
	session.Elapsed = 1234 * time.Millisecond
	report.Session = session
	return report
}

// createClosedReport creates a completed report with nothing open.
func createClosedReport() *model.ScanReport {
	report := createTestReport()
	for i := range report.Session.Results {
		report.Session.Results[i].State = model.StateClosedOrFiltered
		report.Session.Results[i].Identification = ""
	}
	return report
}

// createTimedOutReport creates a report whose scan hit the deadline after 40 ports.
func createTimedOutReport() *model.ScanReport {
	report := createTestReport()
	report.Session.Results = report.Session.Results[:40]
	report.Session.TimedOut = true
	report.State = model.ScanTimedOut
	return report
}

// createHostDownReport creates a report for a target that failed liveness.
func createHostDownReport() *model.ScanReport {
	report := model.NewScanReport(model.NewTarget("192.0.2.99", netip.MustParseAddr("192.0.2.99"), 1, 10))
	report.LivenessMethod = "tcp"
	report.State = model.ScanCompleted
	report.SetError(model.ErrHostDown)
	return report
}

// TestSimpleWriter tests the nmap style text writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes open ports table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := strings.Join([]string{
			"PORT     STATE SERVICE VERSION",
			"22/tcp   open  ssh SSH-2.0-OpenSSH_9.6",
			"80/tcp   open  http",
			"Scan completed in 1.23s",
			"",
		}, "\n")
		if got := buf.String(); got != want {
			t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("all ports closed replaces the table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createClosedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.HasPrefix(output, AllClosedLine+"\n") {
			t.Errorf("expected %q first, got:\n%s", AllClosedLine, output)
		}
		if strings.Contains(output, TableHeader) || strings.Contains(output, "/tcp") {
			t.Errorf("expected no port lines, got:\n%s", output)
		}
	})

	t.Run("timed out scan reports partial results", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTimedOutReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "22/tcp   open  ssh") {
			t.Error("expected port scanned before the deadline")
		}
		if strings.Contains(output, "80/tcp") {
			t.Error("port past the deadline must not be reported")
		}
		if !strings.Contains(output, "Scan timed out after 1m0s (partial results)") {
			t.Errorf("expected timeout line, got:\n%s", output)
		}
		if strings.Contains(output, AllClosedLine) {
			t.Error("timed out scan must not claim all ports closed")
		}
	})

	t.Run("timed out scan with nothing open keeps the table", func(t *testing.T) {
		t.Parallel()

		report := createClosedReport()
		report.Session.Results = report.Session.Results[:10]
		report.Session.TimedOut = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), AllClosedLine) {
			t.Errorf("unexpected %q in:\n%s", AllClosedLine, buf.String())
		}
	})

	t.Run("host down", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createHostDownReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := buf.String(); got != HostDownLine+"\n" {
			t.Errorf("output = %q, want %q", got, HostDownLine+"\n")
		}
	})

	t.Run("failed scan", func(t *testing.T) {
		t.Parallel()

		report := createHostDownReport()
		report.SetError(errors.New("liveness check failed: boom"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "failed: liveness check failed: boom") {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("interrupted scan", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Session.Results = report.Session.Results[:30]
		report.SetError(context.Canceled)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Scan interrupted: context canceled (partial results)") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("verbose adds target and counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Scan report for scanme.example (192.0.2.10), ports 1-100",
			"Host is up (icmp).",
			"Not shown: 98 closed|filtered ports",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in:\n%s", want, output)
			}
		}
	})
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   model.ProbeResult
		want string
	}{
		{
			name: "with identification",
			in:   model.ProbeResult{Port: 8080, State: model.StateOpen, Service: "http-proxy", Identification: "HTTP/1.1 200 OK"},
			want: "8080/tcp   open  http-proxy HTTP/1.1 200 OK",
		},
		{
			name: "service only",
			in:   model.ProbeResult{Port: 554, State: model.StateOpen, Service: "rtsp"},
			want: "554/tcp   open  rtsp",
		},
		{
			name: "unknown service",
			in:   model.ProbeResult{Port: 31337, State: model.StateOpen, Service: model.UnknownService},
			want: "31337/tcp   open  unknown",
		},
		{
			name: "multi-line banner stays on one line",
			in:   model.ProbeResult{Port: 21, State: model.StateOpen, Service: "ftp", Identification: "220 a\r\n220 b"},
			want: "21/tcp   open  ftp 220 a  220 b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatLine(tt.in); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		report *model.ScanReport
		want   Outcome
	}{
		{"open ports", createTestReport(), OutcomeOpenPorts},
		{"all closed", createClosedReport(), OutcomeAllClosed},
		{"timed out", createTimedOutReport(), OutcomeTimedOut},
		{"host down", createHostDownReport(), OutcomeHostDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewSummary(tt.report).Outcome; got != tt.want {
				t.Errorf("Outcome = %q, want %q", got, tt.want)
			}
		})
	}

	s := NewSummary(createTimedOutReport())
	if s.Open != 1 || s.Closed != 39 || s.Unscanned != 60 {
		t.Errorf("counts = open %d closed %d unscanned %d", s.Open, s.Closed, s.Unscanned)
	}
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if lines := strings.Count(buf.String(), "\n"); lines != 1 {
			t.Errorf("expected one line, got %d", lines)
		}

		var decoded struct {
			Target  model.Target      `json:"target"`
			State   string            `json:"state"`
			HostUp  bool              `json:"host_up"`
			Session model.ScanSession `json:"session"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Target.Addr != netip.MustParseAddr("192.0.2.10") {
			t.Errorf("Addr = %v", decoded.Target.Addr)
		}
		if decoded.State != "completed" {
			t.Errorf("State = %q", decoded.State)
		}
		if len(decoded.Session.OpenPorts()) != 2 {
			t.Errorf("open ports = %d, want 2", len(decoded.Session.OpenPorts()))
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"target\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"target\"") {
			t.Error("expected custom prefix and indent")
		}
	})

	t.Run("identification is not HTML escaped", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Session.Results[21].Identification = "HTTP/1.1 302 <Moved> & more"

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"HTTP/1.1 302 <Moved> & more"`) {
			t.Errorf("expected raw identification, got %s", buf.String())
		}
	})

	t.Run("error message is serialized", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createHostDownReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"error":"host seems down"`) {
			t.Errorf("expected error field, got %s", buf.String())
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTimedOutReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Version string  `json:"version"`
		Summary Summary `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("Version = %q", decoded.Version)
	}
	if decoded.Summary.Outcome != OutcomeTimedOut || decoded.Summary.Unscanned != 60 {
		t.Errorf("Summary = %+v", decoded.Summary)
	}
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes open ports", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Port Scan Report: scanme.example",
			"## Open Ports",
			"22/tcp",
			"`SSH-2.0-OpenSSH_9.6`",
			"up (icmp)",
			"```mermaid",
			"Not shown: 98 closed|filtered port(s).",
			"[!IMPORTANT]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in:\n%s", want, output)
			}
		}
	})

	t.Run("all closed", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createClosedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No open ports detected.") || !strings.Contains(output, "[!TIP]") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})

	t.Run("timed out", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTimedOutReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!WARNING]") || !strings.Contains(output, "60 port(s) were not scanned") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})

	t.Run("host down", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createHostDownReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!CAUTION]") {
			t.Errorf("expected caution alert in:\n%s", output)
		}
		if strings.Contains(output, "## Open Ports") {
			t.Error("down host must not have a ports section")
		}
	})

	t.Run("escapes table cells", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Session.Results[21].Identification = "a|b\nc"

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "`a\\|b c`") {
			t.Errorf("expected escaped cell in:\n%s", buf.String())
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
