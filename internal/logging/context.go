package logging

import (
	"context"
	"log/slog"

	"folio/internal/sources"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldIdentifier is the standardized structured logging key for the identifier being resolved.
	FieldIdentifier = "identifier"
	// FieldSource is the standardized structured logging key for metadata source names.
	FieldSource = "source"
	// FieldOperation is the standardized structured logging key for coverage operations.
	FieldOperation = "operation"
	// FieldCollection is the standardized structured logging key for the owning collection.
	FieldCollection = "collection"
	// FieldRunID is the standardized structured logging key for batch-run correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType tags log records for downstream filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests an operator action alongside an error record.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := sources.IdentifierFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldIdentifier, id))
	}
	if source, ok := sources.SourceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSource, source))
	}
	if op, ok := sources.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if runID, ok := sources.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
