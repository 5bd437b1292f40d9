package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ytchou/focus-squad/internal/social/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/social.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProfileRoundTripAndUsernameLookup(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutProfile(context.Background(), storage.ProfileRecord{
		UserID:      "user-1",
		Username:    "alice_one",
		DisplayName: "Alice",
		Bio:         "morning sessions",
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("put profile: %v", err)
	}

	byUser, err := store.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if byUser.Username != "alice_one" || byUser.DisplayName != "Alice" {
		t.Fatalf("profile = %+v", byUser)
	}
	byName, err := store.GetProfileByUsername(context.Background(), "alice_one")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.UserID != "user-1" {
		t.Fatalf("user_id = %q, want user-1", byName.UserID)
	}
	if _, err := store.GetProfile(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
}

func TestProfileUsernameUnique(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	if err := store.PutProfile(context.Background(), storage.ProfileRecord{
		UserID: "user-1", Username: "alice", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	err := store.PutProfile(context.Background(), storage.ProfileRecord{
		UserID: "user-2", Username: "alice", CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	// Same user can keep their own username on update.
	if err := store.PutProfile(context.Background(), storage.ProfileRecord{
		UserID: "user-1", Username: "alice", Bio: "updated", CreatedAt: now, UpdatedAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("update own profile: %v", err)
	}
}

func TestPartnerEdgesOwnerScoped(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	for _, partner := range []string{"user-2", "user-3"} {
		if err := store.PutPartner(context.Background(), storage.PartnerRecord{
			OwnerUserID: "user-1", PartnerUserID: partner, CreatedAt: now,
		}); err != nil {
			t.Fatalf("put partner %s: %v", partner, err)
		}
	}
	// Re-adding an edge is a no-op.
	if err := store.PutPartner(context.Background(), storage.PartnerRecord{
		OwnerUserID: "user-1", PartnerUserID: "user-2", CreatedAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("re-put partner: %v", err)
	}
	if err := store.PutPartner(context.Background(), storage.PartnerRecord{
		OwnerUserID: "user-2", PartnerUserID: "user-1", CreatedAt: now,
	}); err != nil {
		t.Fatalf("reverse edge: %v", err)
	}

	partners, err := store.ListPartners(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list partners: %v", err)
	}
	if len(partners) != 2 {
		t.Fatalf("partners len = %d, want 2", len(partners))
	}

	if err := store.DeletePartner(context.Background(), "user-1", "user-2"); err != nil {
		t.Fatalf("delete partner: %v", err)
	}
	if err := store.DeletePartner(context.Background(), "user-1", "user-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCreditLedger(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

	entries := []storage.CreditRecord{
		{UserID: "user-1", Delta: 10, Reason: "session_completion", SessionID: "session-1", CreatedAt: now},
		{UserID: "user-1", Delta: 5, Reason: "active_bonus", SessionID: "session-1", CreatedAt: now},
		{UserID: "user-1", Delta: -12, Reason: "decor_purchase", CreatedAt: now.Add(time.Hour)},
		{UserID: "user-2", Delta: 10, Reason: "session_completion", SessionID: "session-1", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AppendCredit(context.Background(), entry); err != nil {
			t.Fatalf("append credit: %v", err)
		}
	}

	balance, err := store.CreditBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 3 {
		t.Fatalf("balance = %d, want 3", balance)
	}
	empty, err := store.CreditBalance(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("empty balance: %v", err)
	}
	if empty != 0 {
		t.Fatalf("empty balance = %d, want 0", empty)
	}

	lines, err := store.ListCredits(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("lines len = %d, want 3", len(lines))
	}
	if lines[0].Reason != "decor_purchase" {
		t.Fatalf("newest reason = %q, want decor_purchase", lines[0].Reason)
	}
}

func TestStreakRoundTrip(t *testing.T) {
	store := openTestStore(t)
	day := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	if _, err := store.GetStreak(context.Background(), "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing streak err = %v, want ErrNotFound", err)
	}
	if err := store.PutStreak(context.Background(), storage.StreakRecord{
		UserID: "user-1", Current: 3, Best: 5, LastDay: day,
	}); err != nil {
		t.Fatalf("put streak: %v", err)
	}
	got, err := store.GetStreak(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if got.Current != 3 || got.Best != 5 || !got.LastDay.Equal(day) {
		t.Fatalf("streak = %+v", got)
	}

	if err := store.PutStreak(context.Background(), storage.StreakRecord{
		UserID: "user-1", Current: 4, Best: 5, LastDay: day.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("update streak: %v", err)
	}
	updated, err := store.GetStreak(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get updated streak: %v", err)
	}
	if updated.Current != 4 {
		t.Fatalf("current = %d, want 4", updated.Current)
	}
}
