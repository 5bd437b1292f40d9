// Package service coordinates social profiles, partners, credits and
// streaks over the storage contracts.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/social/credits"
	"github.com/ytchou/focus-squad/internal/social/profile"
	"github.com/ytchou/focus-squad/internal/social/storage"
)

// Options contains optional service dependencies.
type Options struct {
	Now func() time.Time
}

// Service implements the social surface.
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService creates a social service backed by the given store.
func NewService(store storage.Store, options Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Service{store: store, now: options.Now}, nil
}

// UpsertProfile creates or updates a user's profile.
func (s *Service) UpsertProfile(ctx context.Context, userID, username, displayName, bio string) (profile.Profile, error) {
	now := s.now()
	next, err := profile.New(userID, username, displayName, bio, now)
	if err != nil {
		return profile.Profile{}, err
	}

	if existing, err := s.store.GetProfile(ctx, next.UserID); err == nil {
		next.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	if err := s.store.PutProfile(ctx, toProfileRecord(next)); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return profile.Profile{}, apperrors.WithMetadata(apperrors.CodeProfileUsernameTaken,
				"username is taken", map[string]string{"username": next.Username})
		}
		return profile.Profile{}, fmt.Errorf("put profile: %w", err)
	}
	return next, nil
}

// GetProfile loads a profile by user id.
func (s *Service) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	record, err := s.store.GetProfile(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, apperrors.New(apperrors.CodeNotFound, "profile not found")
		}
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return fromProfileRecord(record), nil
}

// GetProfileByUsername loads a profile by username, canonicalizing first.
func (s *Service) GetProfileByUsername(ctx context.Context, username string) (profile.Profile, error) {
	canonical, err := profile.CanonicalizeUsername(username)
	if err != nil {
		return profile.Profile{}, err
	}
	record, err := s.store.GetProfileByUsername(ctx, canonical)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, apperrors.New(apperrors.CodeNotFound, "profile not found")
		}
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return fromProfileRecord(record), nil
}

// AddPartner records a directed partner edge from owner to partner.
func (s *Service) AddPartner(ctx context.Context, ownerUserID, partnerUserID string) error {
	ownerUserID = strings.TrimSpace(ownerUserID)
	partnerUserID = strings.TrimSpace(partnerUserID)
	if ownerUserID == partnerUserID {
		return apperrors.New(apperrors.CodePartnerSelf, "users cannot partner with themselves")
	}
	if _, err := s.GetProfile(ctx, partnerUserID); err != nil {
		return err
	}
	if err := s.store.PutPartner(ctx, storage.PartnerRecord{
		OwnerUserID:   ownerUserID,
		PartnerUserID: partnerUserID,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("put partner: %w", err)
	}
	return nil
}

// RemovePartner deletes a directed partner edge.
func (s *Service) RemovePartner(ctx context.Context, ownerUserID, partnerUserID string) error {
	err := s.store.DeletePartner(ctx, strings.TrimSpace(ownerUserID), strings.TrimSpace(partnerUserID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "partner not found")
		}
		return fmt.Errorf("delete partner: %w", err)
	}
	return nil
}

// ListPartners lists the user ids the owner partnered with.
func (s *Service) ListPartners(ctx context.Context, ownerUserID string) ([]string, error) {
	records, err := s.store.ListPartners(ctx, strings.TrimSpace(ownerUserID))
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	partners := make([]string, 0, len(records))
	for _, record := range records {
		partners = append(partners, record.PartnerUserID)
	}
	return partners, nil
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	balance, err := s.store.CreditBalance(ctx, strings.TrimSpace(userID))
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// Ledger lists newest-first ledger lines for a user.
func (s *Service) Ledger(ctx context.Context, userID string, limit int) ([]credits.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	records, err := s.store.ListCredits(ctx, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	entries := make([]credits.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, credits.Entry{
			UserID:    record.UserID,
			Delta:     record.Delta,
			Reason:    record.Reason,
			SessionID: record.SessionID,
			CreatedAt: record.CreatedAt,
		})
	}
	return entries, nil
}

// Spend debits credits. It fails when the balance cannot cover the cost.
func (s *Service) Spend(ctx context.Context, userID string, amount int, reason, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	userID = strings.TrimSpace(userID)
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return apperrors.WithMetadata(apperrors.CodeCreditsInsufficient, "not enough credits",
			map[string]string{"balance": strconv.Itoa(balance), "cost": strconv.Itoa(amount)})
	}

	entry, err := credits.NewEntry(userID, -amount, reason, reference, s.now())
	if err != nil {
		return err
	}
	if err := s.store.AppendCredit(ctx, toCreditRecord(entry)); err != nil {
		return fmt.Errorf("append credit: %w", err)
	}
	return nil
}

// AwardSessionCompletion grants completion credits and advances the
// streak. Session participation awards are the only credit source.
func (s *Service) AwardSessionCompletion(ctx context.Context, userID, sessionID string, activeAtCompletion bool, completedAt time.Time) error {
	entries, err := credits.CompletionEntries(userID, sessionID, activeAtCompletion, completedAt)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.store.AppendCredit(ctx, toCreditRecord(entry)); err != nil {
			return fmt.Errorf("append credit: %w", err)
		}
	}

	streak := credits.Streak{UserID: userID}
	if record, err := s.store.GetStreak(ctx, userID); err == nil {
		streak = credits.Streak{
			UserID:  record.UserID,
			Current: record.Current,
			Best:    record.Best,
			LastDay: record.LastDay,
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get streak: %w", err)
	}

	advanced := credits.Advance(streak, completedAt)
	if err := s.store.PutStreak(ctx, storage.StreakRecord{
		UserID:  advanced.UserID,
		Current: advanced.Current,
		Best:    advanced.Best,
		LastDay: advanced.LastDay,
	}); err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

// Streak returns the user's completion streak. Users with no completed
// sessions have a zero streak.
func (s *Service) Streak(ctx context.Context, userID string) (credits.Streak, error) {
	record, err := s.store.GetStreak(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return credits.Streak{UserID: strings.TrimSpace(userID)}, nil
		}
		return credits.Streak{}, fmt.Errorf("get streak: %w", err)
	}
	return credits.Streak{
		UserID:  record.UserID,
		Current: record.Current,
		Best:    record.Best,
		LastDay: record.LastDay,
	}, nil
}

func toProfileRecord(p profile.Profile) storage.ProfileRecord {
	return storage.ProfileRecord{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProfileRecord(record storage.ProfileRecord) profile.Profile {
	return profile.Profile{
		UserID:      record.UserID,
		Username:    record.Username,
		DisplayName: record.DisplayName,
		Bio:         record.Bio,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func toCreditRecord(entry credits.Entry) storage.CreditRecord {
	return storage.CreditRecord{
		UserID:    entry.UserID,
		Delta:     entry.Delta,
		Reason:    entry.Reason,
		SessionID: entry.SessionID,
		CreatedAt: entry.CreatedAt,
	}
}
