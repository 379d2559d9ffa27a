package coverage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy maps tenant collections to the sources enabled for them. Global
// providers run regardless; a collection absent from the policy gets global
// providers only.
type Policy struct {
	Collections map[string]CollectionPolicy `yaml:"collections"`
}

// CollectionPolicy lists the sources a collection has opted into.
type CollectionPolicy struct {
	Sources []string `yaml:"sources"`
}

// LoadPolicy reads a policy file. An empty path yields an empty policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes policy yaml.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse policy yaml: %w", err)
	}
	return &policy, nil
}

// Enabled reports whether a collection has opted into a source.
func (p *Policy) Enabled(collection, source string) bool {
	if p == nil || collection == "" {
		return false
	}
	collectionPolicy, ok := p.Collections[collection]
	if !ok {
		return false
	}
	for _, enabled := range collectionPolicy.Sources {
		if enabled == source {
			return true
		}
	}
	return false
}
