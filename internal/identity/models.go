package identity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Type classifies an identifier. The enumeration is open: unknown values are
// carried through verbatim so new source-specific schemes need no code change.
type Type string

const (
	TypeISBN   Type = "isbn"
	TypeASIN   Type = "asin"
	TypeVendor Type = "vendor"
	TypeWorkID Type = "workid"
	TypeURI    Type = "uri"
)

// Identifier is a typed key referring to a work across sources. It is
// value-equal and usable as a map key.
type Identifier struct {
	Type  Type
	Value string
}

// New builds an identifier, normalizing the type tag and trimming the value.
// ISBN values are additionally normalized to their 13-digit form when valid.
func New(idType Type, value string) Identifier {
	normalizedType := Type(strings.ToLower(strings.TrimSpace(string(idType))))
	normalizedValue := strings.TrimSpace(value)
	if normalizedType == TypeISBN {
		if canonical, ok := NormalizeISBN(normalizedValue); ok {
			normalizedValue = canonical
		}
	}
	return Identifier{Type: normalizedType, Value: normalizedValue}
}

// Parse converts a "type:value" token into an Identifier.
func Parse(token string) (Identifier, error) {
	idType, value, found := strings.Cut(strings.TrimSpace(token), ":")
	if !found || strings.TrimSpace(idType) == "" || strings.TrimSpace(value) == "" {
		return Identifier{}, fmt.Errorf("identifier %q is not in type:value form", token)
	}
	return New(Type(idType), value), nil
}

// IsZero reports whether the identifier carries no value.
func (i Identifier) IsZero() bool {
	return i.Type == "" && i.Value == ""
}

func (i Identifier) String() string {
	return string(i.Type) + ":" + i.Value
}

// Equivalency is a directed, weighted, source-attributed assertion that two
// identifiers denote the same work. Edges are never mutated; a fresher edge
// between the same pair simply coexists with older ones.
type Equivalency struct {
	Input     Identifier
	Output    Identifier
	Source    string
	Strength  float64
	CreatedAt time.Time
}

// Set is an unordered collection of identifiers.
type Set map[Identifier]struct{}

// NewSet builds a set from the given identifiers.
func NewSet(ids ...Identifier) Set {
	set := make(Set, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Add inserts an identifier, reporting whether it was newly added.
func (s Set) Add(id Identifier) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports membership.
func (s Set) Has(id Identifier) bool {
	_, ok := s[id]
	return ok
}

// Values returns the members in a stable order. Callers must not rely on any
// particular ordering beyond determinism for equal sets.
func (s Set) Values() []Identifier {
	values := make([]Identifier, 0, len(s))
	for id := range s {
		values = append(values, id)
	}
	sort.Slice(values, func(a, b int) bool {
		if values[a].Type != values[b].Type {
			return values[a].Type < values[b].Type
		}
		return values[a].Value < values[b].Value
	})
	return values
}
