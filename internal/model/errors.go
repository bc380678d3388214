package model

import "errors"

// ErrHostDown is returned when the liveness check finds the target unreachable.
// Port scanning is skipped for such a target.
var ErrHostDown = errors.New("host seems down")
