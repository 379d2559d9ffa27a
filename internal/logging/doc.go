// Package logging centralizes slog construction and the structured field
// vocabulary shared across the resolver. All components log through a logger
// built here so console and JSON output stay consistent.
package logging
