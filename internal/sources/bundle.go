package sources

import (
	"context"
	"strings"

	"folio/internal/identity"
)

// Source is the contract every external metadata collaborator is consumed
// through. FetchBibliographic returns a normalized bundle, a flag indicating
// whether the result came from a local cache, and an error classified by the
// taxonomy in errors.go. Partial or empty bundles are valid: absence of data
// is not an error.
type Source interface {
	Name() string
	FetchBibliographic(ctx context.Context, id identity.Identifier, forceRefresh bool) (*Bundle, bool, error)
}

// Linked is an identifier asserted by a source to denote the same work,
// together with the strength of that assertion.
type Linked struct {
	Identifier identity.Identifier
	Strength   float64
}

// Contributor names an author or other agent, with any identifier hints the
// source supplied (for example a name-authority record key).
type Contributor struct {
	Name            string
	IdentifierHints []string
}

// Measurement is a named numeric observation about a work (rating, sales
// rank, page count). Weight scales the measurement's influence during
// consolidation; the zero value means "unweighted" and is normalized to 1.
type Measurement struct {
	Name   string
	Value  float64
	Weight float64
}

// NormalWeight returns the effective weight with the default applied.
func (m Measurement) NormalWeight() float64 {
	if m.Weight <= 0 {
		return 1
	}
	return m.Weight
}

// Bundle is one source's normalized view of a bibliographic record.
type Bundle struct {
	Title        string
	Language     string
	Identifiers  []Linked
	Contributors []Contributor
	Measurements []Measurement
	Tags         []string
	Descriptions []string
}

// Empty reports whether the bundle carries no usable data.
func (b *Bundle) Empty() bool {
	if b == nil {
		return true
	}
	return strings.TrimSpace(b.Title) == "" &&
		len(b.Identifiers) == 0 &&
		len(b.Contributors) == 0 &&
		len(b.Measurements) == 0 &&
		len(b.Tags) == 0 &&
		len(b.Descriptions) == 0
}

// AuthorNames returns the contributor names in bundle order.
func (b *Bundle) AuthorNames() []string {
	if b == nil || len(b.Contributors) == 0 {
		return nil
	}
	names := make([]string, 0, len(b.Contributors))
	for _, contributor := range b.Contributors {
		if name := strings.TrimSpace(contributor.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
