// Package pipeline runs the per-target scan as a sequence of steps.
//
// The default pipeline is a liveness check followed by the port scan. Each
// step receives the target's model.ScanReport and advances its state.
// BatchProcessor runs one pipeline per target with a concurrency limit
// enforced by errgroup.
package pipeline
