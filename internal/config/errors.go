package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// ParsePortRange. Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no target host is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one host")

	// ErrInvalidPortRange is returned when the port range cannot be parsed,
	// is reversed, or falls outside 1-65535.
	ErrInvalidPortRange = errors.New("invalid port range: expected start-end within 1-65535")

	// ErrInvalidWorkers is returned when the worker pool size is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when a connect or probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDeadline is returned when the scan deadline is not positive.
	ErrInvalidDeadline = errors.New("invalid scan deadline: must be positive")

	// ErrInvalidGracePeriod is returned when the grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidPing is returned when ping count or timeout is not positive
	// while the liveness check is enabled.
	ErrInvalidPing = errors.New("invalid ping settings: count and timeout must be positive")

	// ErrInvalidPingPorts is returned when a TCP liveness port is outside 1-65535.
	ErrInvalidPingPorts = errors.New("invalid ping ports: must be within 1-65535")

	// ErrInvalidLogFormat is returned when the log format is neither text nor json.
	ErrInvalidLogFormat = errors.New("invalid log format: expected text or json")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
