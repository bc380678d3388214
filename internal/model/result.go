package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PortState is the terminal disposition of a probed port.
type PortState int

const (
	// StateClosedOrFiltered covers refused connections, unreachable hosts
	// and connect timeouts. The connect-only scan cannot tell them apart.
	StateClosedOrFiltered PortState = iota

	// StateOpen means the TCP handshake completed.
	StateOpen
)

// String returns the nmap style name of the state.
func (s PortState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosedOrFiltered:
		return "closed|filtered"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string form.
func (s PortState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form of a state.
func (s *PortState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "open":
		*s = StateOpen
	case "closed|filtered":
		*s = StateClosedOrFiltered
	default:
		return fmt.Errorf("unknown port state %q", str)
	}
	return nil
}

// UnknownService is the service name reported for ports missing from the catalog.
const UnknownService = "unknown"

// ProbeResult is the outcome of probing a single port.
type ProbeResult struct {
	// Port is the probed TCP port.
	Port int `json:"port"`

	// State is open or closed|filtered.
	State PortState `json:"state"`

	// Service is the catalog name for the port, or "unknown".
	Service string `json:"service"`

	// Identification is the status line, RTSP reply or banner returned by
	// the port's identifier. Empty when nothing was identified.
	Identification string `json:"identification,omitempty"`

	// Latency is the time taken by the TCP connect.
	Latency time.Duration `json:"latency_ns"`
}

// IsOpen reports whether the port was found open.
func (r ProbeResult) IsOpen() bool {
	return r.State == StateOpen
}

// HasIdentification reports whether an identification string is present.
func (r ProbeResult) HasIdentification() bool {
	return r.Identification != ""
}
