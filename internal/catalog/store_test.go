package catalog_test

import (
	"context"
	"errors"
	"testing"

	"folio/internal/catalog"
	"folio/internal/config"
	"folio/internal/db"
	"folio/internal/identity"
	"folio/internal/sources"
	"folio/internal/testsupport"
)

func newStore(t *testing.T) (*catalog.Store, *identity.Store, *config.Config, *db.DB) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	ids := identity.NewStore(database)
	return catalog.NewStore(database, ids), ids, cfg, database
}

func TestUpsertEditionIdempotent(t *testing.T) {
	store, _, _, _ := newStore(t)
	ctx := context.Background()
	id := identity.New(identity.TypeISBN, "9780316246620")

	edition := catalog.Edition{
		Primary:  id,
		Source:   "open-catalog",
		Title:    "Ancillary Justice",
		Authors:  []string{"Ann Leckie"},
		Language: "eng",
		Tags:     []string{"Science fiction"},
		Measurements: []sources.Measurement{
			{Name: "rating", Value: 4.3},
		},
	}
	first, err := store.UpsertEdition(ctx, edition)
	if err != nil {
		t.Fatalf("UpsertEdition: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected a persisted edition id")
	}
	if first.Title != "Ancillary Justice" || len(first.Authors) != 1 || len(first.Measurements) != 1 {
		t.Fatalf("round trip lost fields: %+v", first)
	}

	edition.Title = "Ancillary Justice (Imperial Radch)"
	second, err := store.UpsertEdition(ctx, edition)
	if err != nil {
		t.Fatalf("UpsertEdition again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("re-ingest created a new edition: %d vs %d", second.ID, first.ID)
	}
	if second.Title != "Ancillary Justice (Imperial Radch)" {
		t.Fatalf("update not applied: %+v", second)
	}

	// A second source creates a sibling edition for the same identifier.
	edition.Source = "bookmart"
	sibling, err := store.UpsertEdition(ctx, edition)
	if err != nil {
		t.Fatalf("UpsertEdition sibling: %v", err)
	}
	if sibling.ID == first.ID {
		t.Fatal("different source should get its own edition row")
	}
}

func TestEditionKeepsWorkAttachmentAcrossUpdates(t *testing.T) {
	store, _, _, _ := newStore(t)
	ctx := context.Background()
	id := identity.New(identity.TypeISBN, "9780316246620")

	edition, err := store.UpsertEdition(ctx, catalog.Edition{Primary: id, Source: "open-catalog", Title: "Ancillary Justice"})
	if err != nil {
		t.Fatalf("UpsertEdition: %v", err)
	}
	work, err := store.CreateWork(ctx, "Ancillary Justice", "Ann Leckie")
	if err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	if err := store.AttachEdition(ctx, edition.ID, work.ID); err != nil {
		t.Fatalf("AttachEdition: %v", err)
	}

	updated, err := store.UpsertEdition(ctx, catalog.Edition{Primary: id, Source: "open-catalog", Title: "Ancillary Justice", Language: "eng"})
	if err != nil {
		t.Fatalf("UpsertEdition update: %v", err)
	}
	if updated.WorkID != work.ID {
		t.Fatalf("update cleared work attachment: %+v", updated)
	}
}

func TestPlaceholderPool(t *testing.T) {
	store, _, _, _ := newStore(t)
	ctx := context.Background()
	id := identity.New(identity.TypeISBN, "9780316246620")

	if err := store.EnsurePlaceholderPool(ctx, id); err != nil {
		t.Fatalf("EnsurePlaceholderPool: %v", err)
	}
	// Idempotent.
	if err := store.EnsurePlaceholderPool(ctx, id); err != nil {
		t.Fatalf("EnsurePlaceholderPool again: %v", err)
	}

	work, err := store.CreateWork(ctx, "Ancillary Justice", "Ann Leckie")
	if err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	if err := store.AssignPoolsToWork(ctx, id, work.ID); err != nil {
		t.Fatalf("AssignPoolsToWork: %v", err)
	}

	pools, err := store.PoolsForWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("PoolsForWork: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected one pool, got %+v", pools)
	}
	if pools[0].Source != catalog.PlaceholderSource || pools[0].Identifier != id {
		t.Fatalf("unexpected pool %+v", pools[0])
	}
}

func TestGetEditionNotFound(t *testing.T) {
	store, _, _, _ := newStore(t)
	_, err := store.GetEdition(context.Background(), identity.New(identity.TypeISBN, "9780316246620"), "open-catalog")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
