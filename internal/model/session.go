package model

import (
	"slices"
	"time"
)

// ScanSession holds the results of scanning the ports of one target.
//
// Results is written only by the engine's collector. Once the engine hands
// the session back it is sorted by port and no longer modified.
type ScanSession struct {
	// Target is the scanned host and range.
	Target Target `json:"target"`

	// StartedAt is when port probing started.
	StartedAt time.Time `json:"started_at"`

	// Deadline is when probing was to be abandoned.
	Deadline time.Time `json:"deadline"`

	// Elapsed is the wall-clock duration of the port scan.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Results has one entry per port that reached a terminal disposition.
	// Ports not reached before the deadline are absent.
	Results []ProbeResult `json:"results"`

	// TimedOut is true when the deadline fired before every port finished.
	TimedOut bool `json:"timed_out"`
}

// NewScanSession creates an empty session for target.
func NewScanSession(target Target, startedAt, deadline time.Time) *ScanSession {
	return &ScanSession{
		Target:    target,
		StartedAt: startedAt,
		Deadline:  deadline,
		Results:   make([]ProbeResult, 0, target.PortCount()),
	}
}

// Add appends a result.
func (s *ScanSession) Add(r ProbeResult) {
	s.Results = append(s.Results, r)
}

// Sort orders results by ascending port.
func (s *ScanSession) Sort() {
	slices.SortFunc(s.Results, func(a, b ProbeResult) int {
		return a.Port - b.Port
	})
}

// OpenPorts returns the open results in result order.
func (s *ScanSession) OpenPorts() []ProbeResult {
	open := make([]ProbeResult, 0)
	for _, r := range s.Results {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	return open
}

// ClosedCount returns the number of closed or filtered ports.
func (s *ScanSession) ClosedCount() int {
	n := 0
	for _, r := range s.Results {
		if !r.IsOpen() {
			n++
		}
	}
	return n
}

// Scanned returns the number of ports that reached a disposition.
func (s *ScanSession) Scanned() int {
	return len(s.Results)
}

// Unscanned returns the number of ports with no disposition.
func (s *ScanSession) Unscanned() int {
	return s.Target.PortCount() - len(s.Results)
}

// AllClosed reports whether the whole range was scanned within the deadline
// and no port was open.
func (s *ScanSession) AllClosed() bool {
	return !s.TimedOut && s.Unscanned() == 0 && len(s.OpenPorts()) == 0
}
