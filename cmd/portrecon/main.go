// Package main provides the entry point for the portrecon CLI.
//
// portrecon checks that a host is up, scans a range of its TCP ports with
// a pool of workers, and identifies the service behind each open port from
// its HTTP, HTTPS or RTSP status line or its banner.
//
// Usage:
//
//	portrecon scan <host> [host...]
//	portrecon scan -p 1-65535 --deadline 5m <host>
//
// See --help for all available options.
package main

// main is the entry point for portrecon.
func main() {
	Execute()
}
