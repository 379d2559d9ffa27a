// Package sources defines the boundary every external metadata collaborator
// is consumed through: the Source fetch contract, the normalized bibliographic
// bundle it returns, the error taxonomy the orchestrator classifies failures
// with, and per-collaborator request pacing. Concrete clients live in
// subpackages and contain fetch-and-parse logic only.
package sources
