// Package storage defines persistence contracts for room decor state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested room record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// OwnershipRecord stores one owned decor item.
type OwnershipRecord struct {
	UserID     string
	ItemID     string
	AcquiredAt time.Time
}

// PlacementRecord stores one placed decor item on the room grid.
type PlacementRecord struct {
	UserID   string
	ItemID   string
	X        int
	Y        int
	PlacedAt time.Time
}

// OwnershipStore persists decor ownership. PutOwnership returns
// ErrAlreadyExists when the user already owns the item.
type OwnershipStore interface {
	PutOwnership(ctx context.Context, record OwnershipRecord) error
	ListOwnership(ctx context.Context, userID string) ([]OwnershipRecord, error)
	HasOwnership(ctx context.Context, userID, itemID string) (bool, error)
}

// PlacementStore persists grid placements. One item occupies at most one
// cell per room.
type PlacementStore interface {
	PutPlacement(ctx context.Context, record PlacementRecord) error
	DeletePlacement(ctx context.Context, userID, itemID string) error
	ListPlacements(ctx context.Context, userID string) ([]PlacementRecord, error)
}

// Store aggregates all room persistence contracts.
type Store interface {
	OwnershipStore
	PlacementStore
}
