package catalog

import (
	"time"

	"folio/internal/identity"
	"folio/internal/sources"
)

// Edition is one source's view of one identifier. Editions are per-source
// facts and are never merged with each other; consolidation happens at the
// Work level.
type Edition struct {
	ID           int64
	Primary      identity.Identifier
	Source       string
	Title        string
	Authors      []string
	Language     string
	Tags         []string
	Measurements []sources.Measurement
	WorkID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Attached reports whether the edition has been consolidated under a work.
func (e Edition) Attached() bool { return e.WorkID != 0 }

// Work is the canonical cluster of editions believed to describe the same
// text. Title and Author are presentation values recomputed from members.
type Work struct {
	ID        int64
	Title     string
	Author    string
	Retired   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LicensePool anchors an acquirable item. A pool exists from the moment its
// identifier enters the system, even before any source has answered.
type LicensePool struct {
	ID         int64
	Identifier identity.Identifier
	Source     string
	WorkID     int64
	CreatedAt  time.Time
}

// PlaceholderSource marks pools created at registration time, before any
// provider attributed the identifier to a real source.
const PlaceholderSource = "placeholder"
