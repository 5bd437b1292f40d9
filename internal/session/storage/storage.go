// Package storage defines persistence contracts for focus session state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested session record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// SessionRecord stores one scheduled or running focus session.
type SessionRecord struct {
	ID        string
	HostID    string
	Title     string
	Status    string
	StartsAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time
}

// ParticipantRecord stores one user's membership in a session.
type ParticipantRecord struct {
	SessionID     string
	UserID        string
	Role          string
	JoinedAt      time.Time
	LeftAt        *time.Time
	Tier          string
	TierChangedAt time.Time
}

// RatingRecord stores one post-session partner rating.
type RatingRecord struct {
	SessionID string
	RaterID   string
	RateeID   string
	Score     int
	Comment   string
	CreatedAt time.Time
}

// InviteRecord stores one single-use session invite token.
type InviteRecord struct {
	Token     string
	SessionID string
	CreatedBy string
	ExpiresAt time.Time
	UsedBy    string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EventRecord stores one session timeline event with a per-session
// monotonic sequence number.
type EventRecord struct {
	ID        int64
	SessionID string
	Seq       uint64
	Type      string
	UserID    string
	Payload   string
	CreatedAt time.Time
}

// SessionStore persists session records.
type SessionStore interface {
	PutSession(ctx context.Context, session SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	ListSessionsForUser(ctx context.Context, userID string, limit int) ([]SessionRecord, error)
}

// ParticipantStore persists session membership records.
type ParticipantStore interface {
	PutParticipant(ctx context.Context, participant ParticipantRecord) error
	GetParticipant(ctx context.Context, sessionID string, userID string) (ParticipantRecord, error)
	ListParticipants(ctx context.Context, sessionID string) ([]ParticipantRecord, error)
}

// RatingStore persists partner ratings. PutRating returns
// ErrAlreadyExists when the rater already rated the ratee for the
// session.
type RatingStore interface {
	PutRating(ctx context.Context, rating RatingRecord) error
	ListRatingsForSession(ctx context.Context, sessionID string) ([]RatingRecord, error)
	ListRatingsForUser(ctx context.Context, userID string, limit int) ([]RatingRecord, error)
}

// InviteStore persists single-use invite tokens.
type InviteStore interface {
	PutInvite(ctx context.Context, invite InviteRecord) error
	GetInvite(ctx context.Context, token string) (InviteRecord, error)
	MarkInviteUsed(ctx context.Context, token string, userID string, usedAt time.Time) error
}

// EventStore appends and reads the per-session event log. AppendEvent
// assigns the next sequence number and returns the stored record.
type EventStore interface {
	AppendEvent(ctx context.Context, event EventRecord) (EventRecord, error)
	ListEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]EventRecord, error)
}

// Store aggregates all session persistence contracts.
type Store interface {
	SessionStore
	ParticipantStore
	RatingStore
	InviteStore
	EventStore
}
