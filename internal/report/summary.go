package report

import (
	"errors"

	"github.com/nao1215/portrecon/internal/model"
)

// Outcome is the headline result of scanning one target.
type Outcome string

// Outcomes, in the order they are checked.
const (
	OutcomeHostDown    Outcome = "host_down"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeAllClosed   Outcome = "all_closed"
	OutcomeOpenPorts   Outcome = "open_ports"
)

// Summary condenses a ScanReport into counts for quick display.
type Summary struct {
	Target    string  `json:"target"`
	Outcome   Outcome `json:"outcome"`
	HostUp    bool    `json:"host_up"`
	Open      int     `json:"open"`
	Closed    int     `json:"closed_or_filtered"`
	Unscanned int     `json:"unscanned"`
	Elapsed   float64 `json:"elapsed_seconds"`
}

// NewSummary builds the summary of report.
func NewSummary(report *model.ScanReport) *Summary {
	s := &Summary{
		Target:  report.Target.String(),
		HostUp:  report.HostUp,
		Outcome: outcomeOf(report),
	}
	if report.Session != nil {
		s.Open = len(report.Session.OpenPorts())
		s.Closed = report.Session.ClosedCount()
		s.Unscanned = report.Session.Unscanned()
		s.Elapsed = report.Session.Elapsed.Seconds()
	}
	return s
}

func outcomeOf(report *model.ScanReport) Outcome {
	switch {
	case errors.Is(report.Error, model.ErrHostDown):
		return OutcomeHostDown
	case report.Session == nil:
		return OutcomeFailed
	case report.TimedOut():
		return OutcomeTimedOut
	case report.Error != nil:
		return OutcomeInterrupted
	case report.Session.AllClosed():
		return OutcomeAllClosed
	default:
		return OutcomeOpenPorts
	}
}
