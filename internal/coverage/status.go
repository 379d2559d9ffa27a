package coverage

import (
	"fmt"
	"time"

	"folio/internal/identity"
	"folio/internal/sources"
)

// Status describes the settled state of one provider attempt.
type Status string

const (
	// StatusSuccess means the source answered and its data was recorded.
	// An empty answer still counts; absence of data is an answer.
	StatusSuccess Status = "success"
	// StatusTransient means the attempt failed in a way worth retrying.
	StatusTransient Status = "transient_failure"
	// StatusPersistent means retrying without intervention is pointless.
	StatusPersistent Status = "persistent_failure"
	// StatusPending is the registration-mode placeholder. Retry selection
	// treats it the same as no record at all.
	StatusPending Status = "pending"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusTransient, StatusPersistent, StatusPending:
		return true
	}
	return false
}

// Retryable reports whether a record in this state should be attempted again
// on a normal (non-forced) pass.
func (s Status) Retryable() bool {
	return s == StatusTransient || s == StatusPending
}

// FromError maps a provider error into a coverage status using the source
// error taxonomy. A nil error is a success.
func FromError(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if sources.Classify(err) == sources.KindPersistent {
		return StatusPersistent
	}
	return StatusTransient
}

// Record is one cell of the coverage ledger.
type Record struct {
	Identifier identity.Identifier
	Source     string
	Operation  string
	Status     Status
	Message    string
	RecordedAt time.Time
}

// Validate checks the natural key and status before persistence.
func (r Record) Validate() error {
	if r.Identifier.IsZero() {
		return fmt.Errorf("coverage record missing identifier")
	}
	if r.Source == "" {
		return fmt.Errorf("coverage record for %s missing source", r.Identifier)
	}
	if r.Operation == "" {
		return fmt.Errorf("coverage record for %s missing operation", r.Identifier)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("coverage record for %s has unknown status %q", r.Identifier, r.Status)
	}
	return nil
}
