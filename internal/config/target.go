package config

import "time"

// Option keys shared by the config file and Config.Pin.
const (
	KeyPorts          = "ports"
	KeyWorkers        = "workers"
	KeyDeadline       = "deadline"
	KeyConnectTimeout = "connectTimeout"
	KeyProbeTimeout   = "probeTimeout"
	KeySkipPing       = "skipPing"
	KeyVersionOnly    = "versionOnly"
	KeyPingPorts      = "pingPorts"
)

// TargetConfig holds scan settings for a single target host.
// Zero values mean "not set" and leave the inherited value untouched.
type TargetConfig struct {
	// Ports overrides the port range ("start-end" or a single port).
	Ports string `yaml:"ports,omitempty"`

	// Workers overrides the worker pool size.
	Workers int `yaml:"workers,omitempty"`

	// Deadline overrides the global scan deadline (e.g. "5m").
	Deadline time.Duration `yaml:"deadline,omitempty"`

	// ConnectTimeout overrides the per-connect timeout.
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`

	// ProbeTimeout overrides the identification I/O timeout.
	ProbeTimeout time.Duration `yaml:"probeTimeout,omitempty"`

	// SkipPing disables the liveness check when true, enables it when false.
	SkipPing *bool `yaml:"skipPing,omitempty"`

	// VersionOnly toggles version-token identification.
	VersionOnly *bool `yaml:"versionOnly,omitempty"`

	// PingPorts overrides the ports tried by the TCP liveness check.
	PingPorts []int `yaml:"pingPorts,omitempty"`
}

// File represents the structure of the .portrecon configuration file.
type File struct {
	// Targets maps a host, exactly as given on the command line, to its settings.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`

	// Defaults applies to every target unless overridden per target.
	Defaults TargetConfig `yaml:"defaults,omitempty"`
}

// GetTargetConfig returns the configuration for a host, merging the
// host-specific entry over the defaults.
func (cf *File) GetTargetConfig(host string) TargetConfig {
	result := cf.Defaults

	tc, ok := cf.Targets[host]
	if !ok {
		return result
	}
	if tc.Ports != "" {
		result.Ports = tc.Ports
	}
	if tc.Workers != 0 {
		result.Workers = tc.Workers
	}
	if tc.Deadline != 0 {
		result.Deadline = tc.Deadline
	}
	if tc.ConnectTimeout != 0 {
		result.ConnectTimeout = tc.ConnectTimeout
	}
	if tc.ProbeTimeout != 0 {
		result.ProbeTimeout = tc.ProbeTimeout
	}
	if tc.SkipPing != nil {
		result.SkipPing = tc.SkipPing
	}
	if tc.VersionOnly != nil {
		result.VersionOnly = tc.VersionOnly
	}
	if len(tc.PingPorts) > 0 {
		result.PingPorts = tc.PingPorts
	}
	return result
}

// Pin marks options as set explicitly on the command line.
// Pinned options are never overridden by the config file.
func (c *Config) Pin(keys ...string) {
	if c.pinned == nil {
		c.pinned = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		c.pinned[k] = true
	}
}

func (c *Config) isPinned(key string) bool {
	return c.pinned[key]
}

// ForTarget returns a copy of c with the config file settings for host
// applied. The receiver is not modified.
func (c *Config) ForTarget(host string) *Config {
	out := *c
	if c.TargetConfigs == nil {
		return &out
	}

	tc := c.TargetConfigs.GetTargetConfig(host)
	if tc.Ports != "" && !c.isPinned(KeyPorts) {
		out.Ports = tc.Ports
	}
	if tc.Workers != 0 && !c.isPinned(KeyWorkers) {
		out.Workers = tc.Workers
	}
	if tc.Deadline != 0 && !c.isPinned(KeyDeadline) {
		out.ScanDeadline = tc.Deadline
	}
	if tc.ConnectTimeout != 0 && !c.isPinned(KeyConnectTimeout) {
		out.ConnectTimeout = tc.ConnectTimeout
	}
	if tc.ProbeTimeout != 0 && !c.isPinned(KeyProbeTimeout) {
		out.ProbeTimeout = tc.ProbeTimeout
	}
	if tc.SkipPing != nil && !c.isPinned(KeySkipPing) {
		out.SkipLiveness = *tc.SkipPing
	}
	if tc.VersionOnly != nil && !c.isPinned(KeyVersionOnly) {
		out.VersionOnly = *tc.VersionOnly
	}
	if len(tc.PingPorts) > 0 && !c.isPinned(KeyPingPorts) {
		out.PingPorts = tc.PingPorts
	}
	return &out
}
