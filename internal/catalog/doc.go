// Package catalog holds the materialized bibliographic records: per-source
// Editions, canonical Works, and the LicensePools that anchor acquirable
// items. The consolidator attaches editions to works through the identifier
// equivalence graph and merges works that turn out to describe the same text.
package catalog
