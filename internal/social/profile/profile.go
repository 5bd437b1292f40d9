// Package profile holds the social profile domain types and username rules.
package profile

import (
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
)

// Username length bounds after canonicalization.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 24
)

// Profile is one user's public social profile.
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
	Bio         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanonicalizeUsername lowercases and validates a username. Only
// [a-z0-9_] survive canonicalization; anything else is rejected.
func CanonicalizeUsername(username string) (string, error) {
	canonical := strings.ToLower(strings.TrimSpace(username))
	if len(canonical) < MinUsernameLen || len(canonical) > MaxUsernameLen {
		return "", apperrors.New(apperrors.CodeProfileInvalidUsername, "username must be 3 to 24 characters")
	}
	for _, r := range canonical {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return "", apperrors.New(apperrors.CodeProfileInvalidUsername, "username may only contain letters, digits and underscores")
		}
	}
	return canonical, nil
}

// New validates and builds a profile.
func New(userID, username, displayName, bio string, now time.Time) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, apperrors.New(apperrors.CodeProfileInvalidUsername, "user id is required")
	}
	canonical, err := CanonicalizeUsername(username)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		UserID:      userID,
		Username:    canonical,
		DisplayName: strings.TrimSpace(displayName),
		Bio:         strings.TrimSpace(bio),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}
