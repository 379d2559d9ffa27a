package identity_test

import (
	"context"
	"testing"

	"folio/internal/identity"
	"folio/internal/testsupport"
)

func TestEnsureIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := identity.NewStore(database)
	ctx := context.Background()

	id := identity.New(identity.TypeISBN, "0-306-40615-2")
	first, err := store.Ensure(ctx, id)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	second, err := store.Ensure(ctx, id)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable row id, got %d then %d", first, second)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single identifier row, got %d", count)
	}
}

func TestEnsureRejectsEmptyValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := identity.NewStore(database)

	if _, err := store.Ensure(context.Background(), identity.Identifier{Type: identity.TypeISBN}); err == nil {
		t.Fatal("expected error for empty identifier value")
	}
}

func TestDuplicateEdgesCoexist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := identity.NewStore(database)
	ctx := context.Background()

	a := identity.Identifier{Type: identity.TypeISBN, Value: "111"}
	b := identity.Identifier{Type: identity.TypeWorkID, Value: "W1"}
	for _, strength := range []float64{0.6, 0.9} {
		err := store.AddEquivalency(ctx, identity.Equivalency{
			Input: a, Output: b, Source: "catalog", Strength: strength,
		})
		if err != nil {
			t.Fatalf("AddEquivalency failed: %v", err)
		}
	}

	edges, err := store.EdgesTouching(ctx, []identity.Identifier{a}, 0)
	if err != nil {
		t.Fatalf("EdgesTouching failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected both asserted edges, got %d", len(edges))
	}
}

func TestAddEquivalencyRejectsBadStrength(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := identity.NewStore(database)

	err := store.AddEquivalency(context.Background(), identity.Equivalency{
		Input:    identity.Identifier{Type: identity.TypeISBN, Value: "111"},
		Output:   identity.Identifier{Type: identity.TypeWorkID, Value: "W1"},
		Strength: 1.2,
	})
	if err == nil {
		t.Fatal("expected error for strength outside [0, 1]")
	}
}

func TestPageWalksAllIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	database := testsupport.MustOpenDB(t, cfg)
	store := identity.NewStore(database)
	ctx := context.Background()

	inserted := []identity.Identifier{
		{Type: identity.TypeISBN, Value: "111"},
		{Type: identity.TypeISBN, Value: "222"},
		{Type: identity.TypeWorkID, Value: "W1"},
	}
	for _, id := range inserted {
		if _, err := store.Ensure(ctx, id); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}

	var (
		cursor int64
		seen   = identity.NewSet()
	)
	for {
		page, next, err := store.Page(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, id := range page {
			seen.Add(id)
		}
		cursor = next
	}
	if len(seen) != len(inserted) {
		t.Fatalf("expected %d identifiers, saw %d", len(inserted), len(seen))
	}
}
