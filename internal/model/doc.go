// Package model defines the data structures shared by the scanner, the
// pipeline and the report writers:
//   - Target and Endpoint: what is scanned
//   - ProbeResult and PortState: the outcome for one port
//   - ScanSession: the collected results of one port scan
//   - ScanState and ScanReport: the lifecycle and final report for a target
package model
