package model

import "time"

// ScanReport is everything learned about one target during one run.
type ScanReport struct {
	// Target is the scanned host and range.
	Target Target `json:"target"`

	// State is the lifecycle state reached.
	State ScanState `json:"state"`

	// DateScanned is when the scan of this target began.
	DateScanned time.Time `json:"date_scanned"`

	// HostUp is the liveness check verdict. It is true when the check was skipped.
	HostUp bool `json:"host_up"`

	// LivenessMethod names how liveness was decided ("icmp", "tcp" or "skipped").
	LivenessMethod string `json:"liveness_method,omitempty"`

	// Session holds the port results. Nil when the host was down.
	Session *ScanSession `json:"session,omitempty"`

	// Error is the first error that stopped the scan, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewScanReport creates a report in the Idle state.
func NewScanReport(target Target) *ScanReport {
	return &ScanReport{
		Target:      target,
		State:       ScanIdle,
		DateScanned: time.Now(),
	}
}

// SetError records err as the report error.
func (r *ScanReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// AddStep records that a pipeline step ran.
func (r *ScanReport) AddStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// TimedOut reports whether the port scan hit the global deadline.
func (r *ScanReport) TimedOut() bool {
	return r.State == ScanTimedOut || (r.Session != nil && r.Session.TimedOut)
}

// OpenPorts returns the open results, or nil when no scan ran.
func (r *ScanReport) OpenPorts() []ProbeResult {
	if r.Session == nil {
		return nil
	}
	return r.Session.OpenPorts()
}
