// Package config provides configuration structures and utilities for portrecon.
// It defines scan defaults (port range, worker count, timeouts and the global
// scan deadline), validation, port range parsing and the optional YAML config
// file with per-target overrides.
package config
