package sources

import "context"

type contextKey string

const (
	identifierKey contextKey = "identifier"
	sourceKey     contextKey = "source"
	operationKey  contextKey = "operation"
	runIDKey      contextKey = "run_id"
	forceKey      contextKey = "force_refresh"
)

// WithForceRefresh marks the context as a forced pass: caches and settled
// coverage are bypassed downstream.
func WithForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceKey, true)
}

// ForceRefresh reports whether the context carries the forced-pass flag.
func ForceRefresh(ctx context.Context) bool {
	v, ok := ctx.Value(forceKey).(bool)
	return ok && v
}

// WithIdentifier annotates context with the identifier being resolved.
func WithIdentifier(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, identifierKey, id)
}

// IdentifierFromContext extracts the identifier token if present.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(identifierKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSource annotates context with the metadata source name.
func WithSource(ctx context.Context, source string) context.Context {
	if source == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceKey, source)
}

// SourceFromContext returns the source name if present.
func SourceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sourceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the coverage operation name.
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with a batch-run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
