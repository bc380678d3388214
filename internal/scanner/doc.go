// Package scanner implements the TCP connect scan.
//
// Prober decides one port: connect, and on success hand the endpoint to
// the identifier chosen for the port. Engine runs a Prober over a whole
// port range with a fixed worker pool (golang.org/x/sync/errgroup), a
// single global deadline and a bounded grace period, and returns a
// model.ScanSession sorted by port.
package scanner
