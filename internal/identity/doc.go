// Package identity models typed bibliographic identifiers and the weighted
// equivalence graph between them, and computes bounded-depth closures over
// that graph. Identifiers are created on first reference and never deleted;
// equivalence edges are append-only and may be asserted repeatedly by
// different sources at different strengths.
package identity
