// Package service implements decor purchases and room layout editing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/rooms/catalog"
	"github.com/ytchou/focus-squad/internal/rooms/storage"
	"github.com/ytchou/focus-squad/internal/social/credits"
)

// GridSize is the room grid edge length. Cells run 0..GridSize-1 on
// both axes.
const GridSize = 8

// Spender debits credits for purchases. The social service implements it.
type Spender interface {
	Spend(ctx context.Context, userID string, amount int, reason, reference string) error
}

// Options contains optional service dependencies.
type Options struct {
	Now func() time.Time
}

// Service implements the room decor surface.
type Service struct {
	store   storage.Store
	catalog *catalog.Catalog
	spender Spender
	now     func() time.Time
}

// Layout is one user's room: everything owned and everything placed.
type Layout struct {
	OwnedItemIDs []string
	Placements   []Placement
}

// Placement is one item on the grid.
type Placement struct {
	ItemID string
	X      int
	Y      int
}

// NewService creates a room service.
func NewService(store storage.Store, items *catalog.Catalog, spender Spender, options Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if spender == nil {
		return nil, fmt.Errorf("spender is required")
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Service{store: store, catalog: items, spender: spender, now: options.Now}, nil
}

// Catalog returns the purchasable items.
func (s *Service) Catalog() []catalog.Item {
	return s.catalog.Items()
}

// Buy purchases a catalog item, debiting the user's credits.
func (s *Service) Buy(ctx context.Context, userID, itemID string) error {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)

	item, ok := s.catalog.Lookup(itemID)
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeRoomItemUnknown, "item is not in the catalog",
			map[string]string{"item_id": itemID})
	}
	owned, err := s.store.HasOwnership(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("has ownership: %w", err)
	}
	if owned {
		return apperrors.New(apperrors.CodeRoomItemOwned, "item is already owned")
	}

	if err := s.spender.Spend(ctx, userID, item.Cost, credits.ReasonDecorPurchase, item.ID); err != nil {
		return err
	}
	if err := s.store.PutOwnership(ctx, storage.OwnershipRecord{
		UserID:     userID,
		ItemID:     item.ID,
		AcquiredAt: s.now().UTC(),
	}); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return apperrors.New(apperrors.CodeRoomItemOwned, "item is already owned")
		}
		return fmt.Errorf("put ownership: %w", err)
	}
	return nil
}

// Place puts an owned item on a grid cell. Placing a placed item moves it.
func (s *Service) Place(ctx context.Context, userID, itemID string, x, y int) error {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)

	if x < 0 || x >= GridSize || y < 0 || y >= GridSize {
		return apperrors.WithMetadata(apperrors.CodeRoomCellOutOfBounds, "cell is outside the room grid",
			map[string]string{"x": strconv.Itoa(x), "y": strconv.Itoa(y), "size": strconv.Itoa(GridSize)})
	}
	if _, ok := s.catalog.Lookup(itemID); !ok {
		return apperrors.WithMetadata(apperrors.CodeRoomItemUnknown, "item is not in the catalog",
			map[string]string{"item_id": itemID})
	}
	owned, err := s.store.HasOwnership(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("has ownership: %w", err)
	}
	if !owned {
		return apperrors.New(apperrors.CodeRoomItemNotOwned, "item is not owned")
	}

	if err := s.store.PutPlacement(ctx, storage.PlacementRecord{
		UserID:   userID,
		ItemID:   itemID,
		X:        x,
		Y:        y,
		PlacedAt: s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("put placement: %w", err)
	}
	return nil
}

// Remove takes a placed item off the grid. The item stays owned.
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	err := s.store.DeletePlacement(ctx, strings.TrimSpace(userID), strings.TrimSpace(itemID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "item is not placed")
		}
		return fmt.Errorf("delete placement: %w", err)
	}
	return nil
}

// Layout loads a user's room.
func (s *Service) Layout(ctx context.Context, userID string) (Layout, error) {
	userID = strings.TrimSpace(userID)

	ownership, err := s.store.ListOwnership(ctx, userID)
	if err != nil {
		return Layout{}, fmt.Errorf("list ownership: %w", err)
	}
	placements, err := s.store.ListPlacements(ctx, userID)
	if err != nil {
		return Layout{}, fmt.Errorf("list placements: %w", err)
	}

	layout := Layout{
		OwnedItemIDs: make([]string, 0, len(ownership)),
		Placements:   make([]Placement, 0, len(placements)),
	}
	for _, record := range ownership {
		layout.OwnedItemIDs = append(layout.OwnedItemIDs, record.ItemID)
	}
	for _, record := range placements {
		layout.Placements = append(layout.Placements, Placement{
			ItemID: record.ItemID,
			X:      record.X,
			Y:      record.Y,
		})
	}
	return layout, nil
}
