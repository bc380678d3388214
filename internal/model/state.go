package model

// ScanState is the lifecycle state of a scan of one target.
//
//	Idle -> LivenessChecking -> Scanning -> Completed | TimedOut
//	LivenessChecking -> Completed (host down)
type ScanState int

const (
	// ScanIdle is the state before any work has started.
	ScanIdle ScanState = iota

	// ScanLivenessChecking is set while the host liveness check runs.
	ScanLivenessChecking

	// ScanScanning is set while ports are being probed.
	ScanScanning

	// ScanCompleted is terminal: every port was dispositioned, or the host was down.
	ScanCompleted

	// ScanTimedOut is terminal: the global deadline fired before all ports finished.
	ScanTimedOut
)

// String returns the state name.
func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanLivenessChecking:
		return "liveness_checking"
	case ScanScanning:
		return "scanning"
	case ScanCompleted:
		return "completed"
	case ScanTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s ScanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
