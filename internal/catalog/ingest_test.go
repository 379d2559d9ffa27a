package catalog_test

import (
	"context"
	"testing"

	"folio/internal/catalog"
	"folio/internal/coverage"
	"folio/internal/identity"
	"folio/internal/logging"
	"folio/internal/sources"
	"folio/internal/testsupport"
)

type scriptedSource struct {
	name    string
	bundles map[identity.Identifier]*sources.Bundle
	err     error
	calls   int
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) FetchBibliographic(_ context.Context, id identity.Identifier, _ bool) (*sources.Bundle, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	if bundle, ok := s.bundles[id]; ok {
		return bundle, false, nil
	}
	return &sources.Bundle{}, false, nil
}

type stack struct {
	ids      *identity.Store
	resolver *identity.Resolver
	ledger   *coverage.Ledger
	store    *catalog.Store
	ingestor *catalog.Ingestor
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	ids := identity.NewStore(database)
	resolver := identity.NewResolver(ids)
	ledger := coverage.NewLedger(database, ids)
	store := catalog.NewStore(database, ids)
	consolidator := catalog.NewConsolidator(store, resolver, cfg, logging.NewNop())
	ingestor := catalog.NewIngestor(store, ids, consolidator, nil, logging.NewNop())
	return &stack{
		ids:      ids,
		resolver: resolver,
		ledger:   ledger,
		store:    store,
		ingestor: ingestor,
	}
}

func TestProviderRoundTrip(t *testing.T) {
	isbn := identity.New(identity.TypeISBN, "9780316246620")
	asin := identity.New(identity.TypeASIN, "B00BAXFAOW")

	src := &scriptedSource{
		name: "open-catalog",
		bundles: map[identity.Identifier]*sources.Bundle{
			isbn: {
				Title:        "Ancillary Justice",
				Contributors: []sources.Contributor{{Name: "Ann Leckie"}},
				Identifiers:  []sources.Linked{{Identifier: asin, Strength: 0.9}},
				Tags:         []string{"Science fiction"},
			},
		},
	}
	s := newStack(t)
	provider := catalog.NewSourceProvider(src, "bibliographic", true, true, []identity.Type{identity.TypeISBN}, s.ingestor)

	ctx := context.Background()
	registry := coverage.NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("Register: %v", err)
	}
	orchestrator := coverage.NewOrchestrator(registry, s.ledger, s.store, nil, logging.NewNop())

	resolution, err := orchestrator.Resolve(ctx, isbn, "", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolution.Failed() {
		t.Fatalf("unexpected failure: %+v", resolution)
	}

	// The bundle's asserted link entered the equivalence graph.
	closure, err := s.resolver.Closure(ctx, isbn, 2, 0.5)
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	if !closure.Has(asin) {
		t.Fatalf("closure missing linked identifier: %v", closure.Values())
	}

	// The edition landed under a work with the pool assigned.
	edition, err := s.store.GetEdition(ctx, isbn, "open-catalog")
	if err != nil {
		t.Fatalf("GetEdition: %v", err)
	}
	if !edition.Attached() {
		t.Fatal("edition not attached to a work")
	}
	pools, err := s.store.PoolsForWork(ctx, edition.WorkID)
	if err != nil {
		t.Fatalf("PoolsForWork: %v", err)
	}
	if len(pools) == 0 {
		t.Fatal("expected pools assigned to the work")
	}

	// Coverage settled, so the identifier no longer needs this provider.
	record, err := s.ledger.Get(ctx, isbn, "open-catalog", "bibliographic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != coverage.StatusSuccess {
		t.Fatalf("unexpected status %v", record.Status)
	}
	for id, err := range s.ledger.MissingCoverage(ctx, []identity.Identifier{isbn}, "open-catalog", "bibliographic", false) {
		if err != nil {
			t.Fatalf("MissingCoverage: %v", err)
		}
		t.Fatalf("identifier %v still reported missing after success", id)
	}

	// And a second resolve does not re-fetch.
	before := src.calls
	if _, err := orchestrator.Resolve(ctx, isbn, "", false); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if src.calls != before {
		t.Fatal("settled provider re-fetched from source")
	}
}

func TestEmptyBundleStillCountsAsCoverage(t *testing.T) {
	src := &scriptedSource{name: "open-catalog"}
	s := newStack(t)
	provider := catalog.NewSourceProvider(src, "bibliographic", false, true, []identity.Type{identity.TypeISBN}, s.ingestor)
	registry := coverage.NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("Register: %v", err)
	}
	orchestrator := coverage.NewOrchestrator(registry, s.ledger, s.store, nil, logging.NewNop())

	ctx := context.Background()
	isbn := identity.New(identity.TypeISBN, "9780316246620")
	if _, err := orchestrator.Resolve(ctx, isbn, "", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	record, err := s.ledger.Get(ctx, isbn, "open-catalog", "bibliographic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != coverage.StatusSuccess {
		t.Fatalf("empty answer should settle as success, got %v", record.Status)
	}
	// No edition materialized for an empty answer.
	if _, err := s.store.GetEdition(ctx, isbn, "open-catalog"); err == nil {
		t.Fatal("empty bundle should not create an edition")
	}
}

func TestSourceErrorSettlesByTaxonomy(t *testing.T) {
	src := &scriptedSource{
		name: "bookmart",
		err:  sources.Wrap(sources.ErrChallenge, "bookmart", "fetch", "bot challenge served", nil),
	}
	s := newStack(t)
	provider := catalog.NewSourceProvider(src, "bibliographic", false, true, []identity.Type{identity.TypeISBN}, s.ingestor)
	registry := coverage.NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("Register: %v", err)
	}
	orchestrator := coverage.NewOrchestrator(registry, s.ledger, s.store, nil, logging.NewNop())

	ctx := context.Background()
	isbn := identity.New(identity.TypeISBN, "9780316246620")
	if _, err := orchestrator.Resolve(ctx, isbn, "", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	record, err := s.ledger.Get(ctx, isbn, "bookmart", "bibliographic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != coverage.StatusPersistent {
		t.Fatalf("challenge should settle persistent, got %v", record.Status)
	}
}

type fixedNames struct{}

func (fixedNames) CanonicalName(_ context.Context, raw string) (string, error) {
	if raw == "A. Leckie" {
		return "Leckie, Ann", nil
	}
	return "", nil
}

func TestIngestCanonicalizesAuthors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	ids := identity.NewStore(database)
	resolver := identity.NewResolver(ids)
	store := catalog.NewStore(database, ids)
	consolidator := catalog.NewConsolidator(store, resolver, cfg, logging.NewNop())
	ingestor := catalog.NewIngestor(store, ids, consolidator, fixedNames{}, logging.NewNop())

	ctx := context.Background()
	isbn := identity.New(identity.TypeISBN, "9780316246620")
	edition, err := ingestor.IngestBundle(ctx, isbn, "open-catalog", &sources.Bundle{
		Title:        "Ancillary Justice",
		Contributors: []sources.Contributor{{Name: "A. Leckie"}, {Name: "Unknown Editor"}},
	})
	if err != nil {
		t.Fatalf("IngestBundle: %v", err)
	}
	if len(edition.Authors) != 2 || edition.Authors[0] != "Leckie, Ann" || edition.Authors[1] != "Unknown Editor" {
		t.Fatalf("unexpected authors %+v", edition.Authors)
	}
}
