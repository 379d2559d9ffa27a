package coverage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"folio/internal/identity"
)

// ProviderInfo describes a provider for registry and policy decisions.
type ProviderInfo struct {
	// Name is unique within the registry.
	Name string
	// Source and Operation form the ledger key the provider settles into.
	Source    string
	Operation string
	// Required providers gate overall resolution success.
	Required bool
	// Global providers run for every collection regardless of policy.
	Global bool
}

// Outcome is the settled result of one provider attempt.
type Outcome struct {
	Status  Status
	Message string
}

// Success is the outcome of a completed attempt, including ones that found
// nothing.
func Success() Outcome { return Outcome{Status: StatusSuccess} }

// Transient marks an attempt worth retrying on a later pass.
func Transient(message string) Outcome {
	return Outcome{Status: StatusTransient, Message: message}
}

// Persistent marks an attempt that will keep failing without intervention.
func Persistent(message string) Outcome {
	return Outcome{Status: StatusPersistent, Message: message}
}

// FromOutcomeError builds an outcome from a provider error using the source
// error taxonomy.
func FromOutcomeError(err error) Outcome {
	if err == nil {
		return Success()
	}
	return Outcome{Status: FromError(err), Message: err.Error()}
}

// Provider performs one unit of coverage work for an identifier.
type Provider interface {
	Info() ProviderInfo
	// CanHandle reports whether the provider understands this identifier
	// type and shape.
	CanHandle(id identity.Identifier) bool
	// Process performs the work and settles into exactly one outcome.
	// Implementations must not panic; the registry converts panics into
	// persistent failures anyway.
	Process(ctx context.Context, id identity.Identifier) Outcome
}

// Registry holds the known providers. Registration happens once at startup;
// lookups are concurrent.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Duplicate names are a wiring bug.
func (r *Registry) Register(provider Provider) error {
	info := provider.Info()
	if info.Name == "" {
		return fmt.Errorf("provider with empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[info.Name]; exists {
		return fmt.Errorf("provider %q already registered", info.Name)
	}
	r.providers[info.Name] = provider
	return nil
}

// All returns the registered providers in stable name order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, r.providers[name])
	}
	return providers
}

// invoke runs a provider with panic containment. A panicking provider must
// not take down a batch; the panic settles as a persistent failure.
func invoke(ctx context.Context, provider Provider, id identity.Identifier) (outcome Outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = Persistent(fmt.Sprintf("provider %s panicked: %v", provider.Info().Name, recovered))
		}
	}()
	return provider.Process(ctx, id)
}
