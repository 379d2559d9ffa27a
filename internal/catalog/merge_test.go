package catalog

import (
	"context"
	"errors"
	"testing"

	"folio/internal/identity"
	"folio/internal/testsupport"
)

// Merge atomicity needs a failure injected mid-transaction, so this test
// lives inside the package and uses the merge failpoint.
func TestMergeRollsBackOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	ids := identity.NewStore(database)
	store := NewStore(database, ids)
	ctx := context.Background()

	sourceWork, err := store.CreateWork(ctx, "Ancillary Justice", "Ann Leckie")
	if err != nil {
		t.Fatalf("CreateWork: %v", err)
	}
	targetWork, err := store.CreateWork(ctx, "Ancillary Justice", "Ann Leckie")
	if err != nil {
		t.Fatalf("CreateWork: %v", err)
	}

	id := identity.New(identity.TypeISBN, "9780316246620")
	edition, err := store.UpsertEdition(ctx, Edition{Primary: id, Source: "open-catalog", Title: "Ancillary Justice"})
	if err != nil {
		t.Fatalf("UpsertEdition: %v", err)
	}
	if err := store.AttachEdition(ctx, edition.ID, sourceWork.ID); err != nil {
		t.Fatalf("AttachEdition: %v", err)
	}
	if err := store.EnsurePlaceholderPool(ctx, id); err != nil {
		t.Fatalf("EnsurePlaceholderPool: %v", err)
	}
	if err := store.AssignPoolsToWork(ctx, id, sourceWork.ID); err != nil {
		t.Fatalf("AssignPoolsToWork: %v", err)
	}

	injected := errors.New("injected merge failure")
	mergeFailpoint = func() error { return injected }
	t.Cleanup(func() { mergeFailpoint = nil })

	err = store.MergeWorks(ctx, sourceWork.ID, targetWork.ID, "Ancillary Justice", "Ann Leckie")
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	// Nothing moved: the edition and the pool still belong to the source
	// work, and the source work is not retired.
	members, err := store.EditionsForWork(ctx, sourceWork.ID)
	if err != nil {
		t.Fatalf("EditionsForWork: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("rollback lost the edition: %+v", members)
	}
	pools, err := store.PoolsForWork(ctx, sourceWork.ID)
	if err != nil {
		t.Fatalf("PoolsForWork: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("rollback lost the pool: %+v", pools)
	}
	reloaded, err := store.GetWork(ctx, sourceWork.ID)
	if err != nil {
		t.Fatalf("GetWork: %v", err)
	}
	if reloaded.Retired {
		t.Fatal("rollback should leave the source work active")
	}

	// Clearing the failpoint lets the same merge succeed.
	mergeFailpoint = nil
	if err := store.MergeWorks(ctx, sourceWork.ID, targetWork.ID, "Ancillary Justice", "Ann Leckie"); err != nil {
		t.Fatalf("MergeWorks after clearing failpoint: %v", err)
	}
	members, err = store.EditionsForWork(ctx, targetWork.ID)
	if err != nil {
		t.Fatalf("EditionsForWork: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("merge did not move the edition: %+v", members)
	}
}
