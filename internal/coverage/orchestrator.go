package coverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"folio/internal/identity"
	"folio/internal/logging"
	"folio/internal/sources"
)

// PoolEnsurer creates the placeholder license pool an identifier gets the
// moment it enters the system, before any provider has run.
type PoolEnsurer interface {
	EnsurePlaceholderPool(ctx context.Context, id identity.Identifier) error
}

// Resolution summarizes one resolution attempt across providers.
type Resolution struct {
	Identifier identity.Identifier
	Collection string
	// Outcomes is keyed by provider name. Providers skipped because their
	// ledger cell already settled do not appear.
	Outcomes map[string]Outcome
	Elapsed  time.Duration

	failedRequired []string
}

// Failed reports whether any required provider settled on a failure.
func (r Resolution) Failed() bool {
	return len(r.failedRequired) > 0
}

// Orchestrator decides which providers run for an identifier and settles
// their outcomes into the ledger.
type Orchestrator struct {
	registry *Registry
	ledger   *Ledger
	pools    PoolEnsurer
	policy   *Policy
	logger   *slog.Logger
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(registry *Registry, ledger *Ledger, pools PoolEnsurer, policy *Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy == nil {
		policy = &Policy{}
	}
	return &Orchestrator{
		registry: registry,
		ledger:   ledger,
		pools:    pools,
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// ProvidersFor filters the registry down to providers that understand the
// identifier and are allowed for the collection. Global providers always
// qualify; the rest need a policy opt-in.
func (o *Orchestrator) ProvidersFor(id identity.Identifier, collection string) []Provider {
	var selected []Provider
	for _, provider := range o.registry.All() {
		if !provider.CanHandle(id) {
			continue
		}
		info := provider.Info()
		if info.Global || o.policy.Enabled(collection, info.Source) {
			selected = append(selected, provider)
		}
	}
	return selected
}

// Register enters an identifier into the system without doing any source
// work: the placeholder pool is created and each applicable provider gets a
// pending ledger cell. Settled cells are left alone.
func (o *Orchestrator) Register(ctx context.Context, id identity.Identifier, collection string) error {
	if o.pools != nil {
		if err := o.pools.EnsurePlaceholderPool(ctx, id); err != nil {
			return fmt.Errorf("ensure placeholder pool: %w", err)
		}
	}
	for _, provider := range o.ProvidersFor(id, collection) {
		info := provider.Info()
		if err := o.ledger.EnsurePending(ctx, id, info.Source, info.Operation); err != nil {
			return err
		}
	}
	o.logger.InfoContext(ctx, "identifier registered",
		logging.String(logging.FieldIdentifier, id.String()),
		logging.String(logging.FieldCollection, collection))
	return nil
}

// Resolve runs every applicable provider synchronously and settles each
// outcome into the ledger. The placeholder pool is created before the first
// provider runs, so an identifier is materialized even when every source
// fails. Only required-provider failures fail the resolution as a whole.
func (o *Orchestrator) Resolve(ctx context.Context, id identity.Identifier, collection string, forceRefresh bool) (Resolution, error) {
	started := time.Now()
	resolution := Resolution{
		Identifier: id,
		Collection: collection,
		Outcomes:   make(map[string]Outcome),
	}

	if forceRefresh {
		ctx = sources.WithForceRefresh(ctx)
	}
	if o.pools != nil {
		if err := o.pools.EnsurePlaceholderPool(ctx, id); err != nil {
			return resolution, fmt.Errorf("ensure placeholder pool: %w", err)
		}
	}

	for _, provider := range o.ProvidersFor(id, collection) {
		if err := ctx.Err(); err != nil {
			return resolution, err
		}
		info := provider.Info()

		if !forceRefresh {
			existing, err := o.ledger.Get(ctx, id, info.Source, info.Operation)
			if err != nil && !errors.Is(err, ErrNoRecord) {
				return resolution, err
			}
			if err == nil && !existing.Status.Retryable() {
				continue
			}
		}

		outcome := invoke(ctx, provider, id)
		if !outcome.Status.Valid() {
			outcome = Persistent(fmt.Sprintf("provider %s returned unknown status %q", info.Name, outcome.Status))
		}
		resolution.Outcomes[info.Name] = outcome

		err := o.ledger.Upsert(ctx, Record{
			Identifier: id,
			Source:     info.Source,
			Operation:  info.Operation,
			Status:     outcome.Status,
			Message:    outcome.Message,
		})
		if err != nil {
			return resolution, err
		}

		logger := o.logger.With(
			logging.String(logging.FieldIdentifier, id.String()),
			logging.String(logging.FieldSource, info.Source),
			logging.String(logging.FieldOperation, info.Operation))
		switch outcome.Status {
		case StatusSuccess:
			logger.InfoContext(ctx, "provider succeeded")
		case StatusTransient:
			logger.WarnContext(ctx, "provider failed, will retry", logging.String("message", outcome.Message))
		default:
			logger.ErrorContext(ctx, "provider failed permanently", logging.String("message", outcome.Message))
		}

		if info.Required && outcome.Status != StatusSuccess {
			resolution.failedRequired = append(resolution.failedRequired, info.Name)
		}
	}

	resolution.Elapsed = time.Since(started)
	if resolution.Failed() {
		return resolution, fmt.Errorf("required providers failed for %s: %v", id, resolution.failedRequired)
	}
	return resolution, nil
}
