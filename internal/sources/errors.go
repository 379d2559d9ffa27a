package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited signals the collaborator asked the client to back off.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound signals the collaborator definitively has no knowledge of the identifier.
	ErrNotFound = errors.New("not found")
	// ErrUnreachable signals a network-level failure reaching the collaborator.
	ErrUnreachable = errors.New("unreachable")
	// ErrMalformed signals the identifier itself is defective and will never resolve.
	ErrMalformed = errors.New("malformed identifier")
	// ErrChallenge signals the collaborator demanded human-in-the-loop handling
	// (an anti-bot challenge). Unattended operation treats this as persistent
	// rather than blocking the batch.
	ErrChallenge = errors.New("interactive challenge required")
)

// Kind partitions the taxonomy into retry semantics.
type Kind int

const (
	// KindTransient failures are retried on the next batch.
	KindTransient Kind = iota
	// KindPersistent failures are never auto-retried.
	KindPersistent
)

// Wrap builds an error message carrying source context while tagging it with
// the provided taxonomy marker for later classification.
func Wrap(marker error, source, operation, message string, err error) error {
	detail := buildDetail(source, operation, message)
	if marker == nil {
		marker = ErrUnreachable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error from a source call onto retry semantics. Timeouts
// and cancellation count as transient: the call may succeed on a later batch.
// Unknown errors default to transient so a programming slip inside a client
// cannot permanently poison an identifier.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMalformed),
		errors.Is(err, ErrChallenge):
		return KindPersistent
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindTransient
	}
}

// FromStatusCode maps an HTTP response status onto the taxonomy. A nil return
// means the status needs no error.
func FromStatusCode(source, operation string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 404 || code == 410:
		return Wrap(ErrNotFound, source, operation, fmt.Sprintf("status %d", code), nil)
	case code == 429:
		return Wrap(ErrRateLimited, source, operation, fmt.Sprintf("status %d", code), nil)
	case code == 400 || code == 422:
		return Wrap(ErrMalformed, source, operation, fmt.Sprintf("status %d", code), nil)
	default:
		return Wrap(ErrUnreachable, source, operation, fmt.Sprintf("status %d", code), nil)
	}
}

func buildDetail(source, operation, message string) string {
	parts := make([]string, 0, 3)
	if source = strings.TrimSpace(source); source != "" {
		parts = append(parts, source)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "source failure"
	}
	return strings.Join(parts, ": ")
}
