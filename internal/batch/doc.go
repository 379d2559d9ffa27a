// Package batch drives unattended resolution over the whole identifier
// population: bounded worksets, a bounded worker pool, per-identifier
// serialization, and plateau detection so a run always terminates.
package batch
