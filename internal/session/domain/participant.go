package domain

import (
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/presence"
)

// Role describes a participant's relationship to the session.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleHost is the participant who scheduled the session.
	RoleHost
	// RolePartner is any other participant.
	RolePartner
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePartner:
		return "partner"
	default:
		return "unspecified"
	}
}

// RoleFromString parses a wire role name. Unknown names map to
// RoleUnspecified.
func RoleFromString(value string) Role {
	switch value {
	case "host":
		return RoleHost
	case "partner":
		return RolePartner
	default:
		return RoleUnspecified
	}
}

// Participant records one user's membership in a session, including the
// most recently classified presence tier.
type Participant struct {
	SessionID     string
	UserID        string
	Role          Role
	JoinedAt      time.Time
	LeftAt        *time.Time // nil while the participant is in the session
	Tier          presence.Tier
	TierChangedAt time.Time
}

// Active reports whether the participant has not left.
func (p Participant) Active() bool {
	return p.LeftAt == nil
}

// JoinSession validates that a user can join and builds the membership record.
// Joined participants start as active: joining is itself a presence signal.
func JoinSession(session Session, existing []Participant, userID string, role Role, now time.Time) (Participant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Participant{}, apperrors.New(apperrors.CodeSessionNotParticipant, "user id is required")
	}
	if session.Status.IsFinal() {
		return Participant{}, apperrors.New(apperrors.CodeSessionNotJoinable, "session is no longer joinable")
	}

	active := 0
	for _, participant := range existing {
		if !participant.Active() {
			continue
		}
		active++
		if participant.UserID == userID {
			return Participant{}, apperrors.New(apperrors.CodeSessionAlreadyJoined, "user already joined this session")
		}
	}
	if active >= MaxPartners {
		return Participant{}, apperrors.WithMetadata(apperrors.CodeSessionFull, "session has no open seats",
			map[string]string{"capacity": "4"})
	}

	joinedAt := now.UTC()
	return Participant{
		SessionID:     session.ID,
		UserID:        userID,
		Role:          role,
		JoinedAt:      joinedAt,
		Tier:          presence.TierActive,
		TierChangedAt: joinedAt,
	}, nil
}
