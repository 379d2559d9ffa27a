// Package db owns the sqlite connection shared by the identifier, coverage,
// and catalog stores. It applies connection pragmas and schema migrations at
// open so every store sees the same schema version.
package db
