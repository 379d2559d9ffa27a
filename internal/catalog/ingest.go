package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"folio/internal/coverage"
	"folio/internal/identity"
	"folio/internal/logging"
	"folio/internal/sources"
)

// NameNormalizer resolves raw contributor names to their authority form.
// The empty string means the authority has no opinion.
type NameNormalizer interface {
	CanonicalName(ctx context.Context, rawName string) (string, error)
}

// Ingestor turns source bundles into persisted catalog state: equivalence
// edges, an edition, a license pool, and a work attachment.
type Ingestor struct {
	store        *Store
	ids          *identity.Store
	consolidator *Consolidator
	names        NameNormalizer
	logger       *slog.Logger
}

// NewIngestor wires the ingestor. names may be nil when no authority client
// is configured.
func NewIngestor(store *Store, ids *identity.Store, consolidator *Consolidator, names NameNormalizer, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{
		store:        store,
		ids:          ids,
		consolidator: consolidator,
		names:        names,
		logger:       logging.NewComponentLogger(logger, "ingest"),
	}
}

// IngestBundle persists everything a source asserted about an identifier.
// Equivalence edges are appended first so the edition's closure sees them
// during consolidation.
func (g *Ingestor) IngestBundle(ctx context.Context, id identity.Identifier, sourceName string, bundle *sources.Bundle) (Edition, error) {
	for _, linked := range bundle.Identifiers {
		eq := identity.Equivalency{
			Input:    id,
			Output:   linked.Identifier,
			Source:   sourceName,
			Strength: linked.Strength,
		}
		if err := g.ids.AddEquivalency(ctx, eq); err != nil {
			return Edition{}, fmt.Errorf("record equivalency %s -> %s: %w", id, linked.Identifier, err)
		}
	}

	edition := Edition{
		Primary:      id,
		Source:       sourceName,
		Title:        strings.TrimSpace(bundle.Title),
		Authors:      g.authorNames(ctx, bundle.Contributors),
		Language:     strings.TrimSpace(bundle.Language),
		Tags:         bundle.Tags,
		Measurements: bundle.Measurements,
	}
	edition, err := g.store.UpsertEdition(ctx, edition)
	if err != nil {
		return Edition{}, err
	}
	if err := g.store.EnsurePool(ctx, id, sourceName); err != nil {
		return Edition{}, err
	}

	work, err := g.consolidator.AttachOrCreateWork(ctx, edition)
	if err != nil {
		return Edition{}, err
	}
	g.logger.DebugContext(ctx, "bundle ingested",
		logging.String(logging.FieldIdentifier, id.String()),
		logging.String(logging.FieldSource, sourceName),
		logging.Int64("work_id", work.ID))
	edition.WorkID = work.ID
	return edition, nil
}

// authorNames flattens contributors to display names, preferring the
// authority's canonical form when one exists. Authority outages are not
// worth failing an ingest over; the raw name stands in.
func (g *Ingestor) authorNames(ctx context.Context, contributors []sources.Contributor) []string {
	var names []string
	for _, contributor := range contributors {
		name := strings.TrimSpace(contributor.Name)
		if name == "" {
			continue
		}
		if g.names != nil {
			canonical, err := g.names.CanonicalName(ctx, name)
			if err == nil && canonical != "" {
				name = canonical
			}
		}
		names = append(names, name)
	}
	return names
}

// SourceProvider adapts a bibliographic source into a coverage provider.
type SourceProvider struct {
	source  sources.Source
	ingest  *Ingestor
	info    coverage.ProviderInfo
	handles map[identity.Type]bool
}

// NewSourceProvider builds a provider that fetches from source and settles
// the (source, operation) ledger cell for the given identifier types.
func NewSourceProvider(source sources.Source, operation string, required, global bool, handles []identity.Type, ingest *Ingestor) *SourceProvider {
	handled := make(map[identity.Type]bool, len(handles))
	for _, idType := range handles {
		handled[idType] = true
	}
	return &SourceProvider{
		source: source,
		ingest: ingest,
		info: coverage.ProviderInfo{
			Name:      source.Name() + "/" + operation,
			Source:    source.Name(),
			Operation: operation,
			Required:  required,
			Global:    global,
		},
		handles: handled,
	}
}

// Info describes the provider for registry and policy decisions.
func (p *SourceProvider) Info() coverage.ProviderInfo { return p.info }

// CanHandle reports whether the provider understands the identifier type.
func (p *SourceProvider) CanHandle(id identity.Identifier) bool {
	return p.handles[id.Type]
}

// Process fetches from the source and ingests the bundle. An empty bundle is
// still a success: the source answered, and absence of data is an answer.
func (p *SourceProvider) Process(ctx context.Context, id identity.Identifier) coverage.Outcome {
	bundle, _, err := p.source.FetchBibliographic(ctx, id, sources.ForceRefresh(ctx))
	if err != nil {
		return coverage.FromOutcomeError(err)
	}
	if bundle.Empty() {
		return coverage.Success()
	}
	if _, err := p.ingest.IngestBundle(ctx, id, p.info.Source, bundle); err != nil {
		// Local persistence failures are retryable, unlike a source
		// telling us the identifier is bad.
		return coverage.Transient(err.Error())
	}
	return coverage.Success()
}

var _ coverage.Provider = (*SourceProvider)(nil)
