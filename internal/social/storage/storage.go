// Package storage defines persistence contracts for social state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested social record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ProfileRecord stores one user's social profile.
type ProfileRecord struct {
	UserID      string
	Username    string
	DisplayName string
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PartnerRecord stores one owner-scoped directed partner edge.
type PartnerRecord struct {
	OwnerUserID   string
	PartnerUserID string
	CreatedAt     time.Time
}

// CreditRecord stores one append-only credit ledger line.
type CreditRecord struct {
	ID        int64
	UserID    string
	Delta     int
	Reason    string
	SessionID string
	CreatedAt time.Time
}

// StreakRecord stores one user's completion streak.
type StreakRecord struct {
	UserID  string
	Current int
	Best    int
	LastDay time.Time
}

// ProfileStore persists social profiles. PutProfile returns
// ErrAlreadyExists when the username belongs to another user.
type ProfileStore interface {
	PutProfile(ctx context.Context, record ProfileRecord) error
	GetProfile(ctx context.Context, userID string) (ProfileRecord, error)
	GetProfileByUsername(ctx context.Context, username string) (ProfileRecord, error)
}

// PartnerStore persists directed partner edges.
type PartnerStore interface {
	PutPartner(ctx context.Context, record PartnerRecord) error
	DeletePartner(ctx context.Context, ownerUserID, partnerUserID string) error
	ListPartners(ctx context.Context, ownerUserID string) ([]PartnerRecord, error)
}

// CreditStore persists the append-only credit ledger.
type CreditStore interface {
	AppendCredit(ctx context.Context, record CreditRecord) error
	ListCredits(ctx context.Context, userID string, limit int) ([]CreditRecord, error)
	CreditBalance(ctx context.Context, userID string) (int, error)
}

// StreakStore persists completion streaks.
type StreakStore interface {
	PutStreak(ctx context.Context, record StreakRecord) error
	GetStreak(ctx context.Context, userID string) (StreakRecord, error)
}

// Store aggregates all social persistence contracts.
type Store interface {
	ProfileStore
	PartnerStore
	CreditStore
	StreakStore
}
