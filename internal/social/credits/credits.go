// Package credits defines the append-only credit ledger domain.
package credits

import (
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
)

// Award amounts for completed sessions.
const (
	CompletionAward = 10
	ActiveBonus     = 5
)

// Ledger entry reasons.
const (
	ReasonSessionCompletion = "session_completion"
	ReasonActiveBonus       = "active_bonus"
	ReasonDecorPurchase     = "decor_purchase"
)

// Entry is one immutable ledger line. Balances are derived by summing
// deltas, never stored.
type Entry struct {
	UserID    string
	Delta     int
	Reason    string
	SessionID string
	CreatedAt time.Time
}

// NewEntry validates and builds a ledger entry.
func NewEntry(userID string, delta int, reason, sessionID string, now time.Time) (Entry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Entry{}, apperrors.New(apperrors.CodeUnknown, "user id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Entry{}, apperrors.New(apperrors.CodeUnknown, "reason is required")
	}
	return Entry{
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		SessionID: strings.TrimSpace(sessionID),
		CreatedAt: now.UTC(),
	}, nil
}

// Balance sums a user's ledger.
func Balance(entries []Entry) int {
	total := 0
	for _, entry := range entries {
		total += entry.Delta
	}
	return total
}

// CompletionEntries builds the ledger lines one completed session earns.
func CompletionEntries(userID, sessionID string, activeAtCompletion bool, completedAt time.Time) ([]Entry, error) {
	award, err := NewEntry(userID, CompletionAward, ReasonSessionCompletion, sessionID, completedAt)
	if err != nil {
		return nil, err
	}
	entries := []Entry{award}
	if activeAtCompletion {
		bonus, err := NewEntry(userID, ActiveBonus, ReasonActiveBonus, sessionID, completedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, bonus)
	}
	return entries, nil
}
