package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/platform/id"
)

// Status describes the lifecycle state of a session record.
type Status int

const (
	// StatusUnspecified represents an invalid session status value.
	StatusUnspecified Status = iota
	// StatusScheduled indicates the session has not started yet.
	StatusScheduled
	// StatusLive indicates the session timeline is running.
	StatusLive
	// StatusCompleted indicates the timeline finished and awards were granted.
	StatusCompleted
	// StatusCanceled indicates the host canceled before completion.
	StatusCanceled
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusLive:
		return "live"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unspecified"
	}
}

// IsFinal reports whether no further transitions are allowed.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// StatusFromString parses a wire status name. Unknown names map to
// StatusUnspecified.
func StatusFromString(value string) Status {
	switch value {
	case "scheduled":
		return StatusScheduled
	case "live":
		return StatusLive
	case "completed":
		return StatusCompleted
	case "canceled":
		return StatusCanceled
	default:
		return StatusUnspecified
	}
}

// MaxPartners caps how many participants share one session, host included.
const MaxPartners = 4

// Session represents one scheduled focus session.
type Session struct {
	ID             string
	HostUserID     string
	Title          string
	ScheduledStart time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	EndedAt        *time.Time // nil until completed or canceled
}

// PhaseNow derives the timeline position of this session at the given instant.
func (s Session) PhaseNow(now time.Time) PhaseInfo {
	return PhaseAt(s.ScheduledStart, now)
}

// CreateSessionInput describes the metadata needed to schedule a session.
type CreateSessionInput struct {
	HostUserID     string
	Title          string
	ScheduledStart time.Time
}

// CreateSession creates a new session with a generated ID and timestamps.
// The session is created with SCHEDULED status.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:             sessionID,
		HostUserID:     normalized.HostUserID,
		Title:          normalized.Title,
		ScheduledStart: normalized.ScheduledStart.UTC(),
		Status:         StatusScheduled,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		EndedAt:        nil,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session input metadata.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.HostUserID = strings.TrimSpace(input.HostUserID)
	if input.HostUserID == "" {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeSessionEmptyHost, "host user id is required")
	}
	if input.ScheduledStart.IsZero() {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeSessionStartRequired, "scheduled start is required")
	}
	input.Title = strings.TrimSpace(input.Title)
	// Title is optional, so empty string is allowed.
	return input, nil
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusLive || to == StatusCanceled
	case StatusLive:
		return to == StatusCompleted || to == StatusCanceled
	default:
		return false
	}
}

// Transition applies a status change, stamping UpdatedAt and EndedAt.
func (s Session) Transition(to Status, now time.Time) (Session, error) {
	if !CanTransition(s.Status, to) {
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeSessionInvalidTransition,
			fmt.Sprintf("cannot transition session from %s to %s", s.Status, to),
			map[string]string{"from": s.Status.String(), "to": to.String()},
		)
	}
	s.Status = to
	s.UpdatedAt = now.UTC()
	if to.IsFinal() {
		endedAt := now.UTC()
		s.EndedAt = &endedAt
	}
	return s, nil
}
