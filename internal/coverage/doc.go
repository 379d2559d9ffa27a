// Package coverage tracks which external sources have been consulted for
// which identifiers. Every provider invocation settles into exactly one
// coverage record keyed by (identifier, source, operation); the record's
// status drives retry selection for later batch passes.
package coverage
