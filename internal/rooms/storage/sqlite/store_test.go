package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ytchou/focus-squad/internal/rooms/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/rooms.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOwnershipRoundTrip(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutOwnership(context.Background(), storage.OwnershipRecord{
		UserID: "user-1", ItemID: "rug_teal", AcquiredAt: now,
	}); err != nil {
		t.Fatalf("put ownership: %v", err)
	}
	if err := store.PutOwnership(context.Background(), storage.OwnershipRecord{
		UserID: "user-1", ItemID: "rug_teal", AcquiredAt: now,
	}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}

	owns, err := store.HasOwnership(context.Background(), "user-1", "rug_teal")
	if err != nil {
		t.Fatalf("has ownership: %v", err)
	}
	if !owns {
		t.Fatal("ownership missing")
	}
	owns, err = store.HasOwnership(context.Background(), "user-1", "corgi")
	if err != nil {
		t.Fatalf("has ownership: %v", err)
	}
	if owns {
		t.Fatal("unowned item reported owned")
	}

	items, err := store.ListOwnership(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list ownership: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != "rug_teal" {
		t.Fatalf("items = %+v, want [rug_teal]", items)
	}
}

func TestPlacementMoveAndRemove(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutPlacement(context.Background(), storage.PlacementRecord{
		UserID: "user-1", ItemID: "rug_teal", X: 2, Y: 3, PlacedAt: now,
	}); err != nil {
		t.Fatalf("put placement: %v", err)
	}
	// Placing again moves the item.
	if err := store.PutPlacement(context.Background(), storage.PlacementRecord{
		UserID: "user-1", ItemID: "rug_teal", X: 5, Y: 6, PlacedAt: now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("move placement: %v", err)
	}

	placements, err := store.ListPlacements(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list placements: %v", err)
	}
	if len(placements) != 1 || placements[0].X != 5 || placements[0].Y != 6 {
		t.Fatalf("placements = %+v, want single item at 5,6", placements)
	}

	if err := store.DeletePlacement(context.Background(), "user-1", "rug_teal"); err != nil {
		t.Fatalf("delete placement: %v", err)
	}
	if err := store.DeletePlacement(context.Background(), "user-1", "rug_teal"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}
