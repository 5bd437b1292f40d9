package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func fixedID() (string, error) {
	return "session-1", nil
}

func TestCreateSession(t *testing.T) {
	start := fixedNow().Add(time.Hour)
	session, err := CreateSession(CreateSessionInput{
		HostUserID:     "  user-1  ",
		Title:          " morning sprint ",
		ScheduledStart: start,
	}, fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "session-1" {
		t.Fatalf("id = %q, want session-1", session.ID)
	}
	if session.HostUserID != "user-1" {
		t.Fatalf("host = %q, want trimmed user-1", session.HostUserID)
	}
	if session.Title != "morning sprint" {
		t.Fatalf("title = %q, want trimmed title", session.Title)
	}
	if session.Status != StatusScheduled {
		t.Fatalf("status = %s, want scheduled", session.Status)
	}
	if !session.CreatedAt.Equal(fixedNow()) || !session.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("timestamps = %s/%s, want %s", session.CreatedAt, session.UpdatedAt, fixedNow())
	}
	if session.EndedAt != nil {
		t.Fatal("ended at should be nil on creation")
	}
}

func TestCreateSessionRequiresHost(t *testing.T) {
	_, err := CreateSession(CreateSessionInput{ScheduledStart: fixedNow()}, fixedNow, fixedID)
	if apperrors.CodeOf(err) != apperrors.CodeSessionEmptyHost {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeSessionEmptyHost)
	}
}

func TestCreateSessionRequiresStart(t *testing.T) {
	_, err := CreateSession(CreateSessionInput{HostUserID: "user-1"}, fixedNow, fixedID)
	if apperrors.CodeOf(err) != apperrors.CodeSessionStartRequired {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeSessionStartRequired)
	}
}

func TestCreateSessionPropagatesIDError(t *testing.T) {
	idErr := errors.New("entropy exhausted")
	_, err := CreateSession(CreateSessionInput{
		HostUserID:     "user-1",
		ScheduledStart: fixedNow(),
	}, fixedNow, func() (string, error) { return "", idErr })
	if !errors.Is(err, idErr) {
		t.Fatalf("expected id error in chain, got %v", err)
	}
}

func TestSessionTransitions(t *testing.T) {
	session := Session{ID: "s", Status: StatusScheduled}

	live, err := session.Transition(StatusLive, fixedNow())
	if err != nil {
		t.Fatalf("scheduled->live: %v", err)
	}
	if live.Status != StatusLive || live.EndedAt != nil {
		t.Fatalf("live = %+v, want live status with nil EndedAt", live)
	}

	completed, err := live.Transition(StatusCompleted, fixedNow().Add(time.Hour))
	if err != nil {
		t.Fatalf("live->completed: %v", err)
	}
	if completed.EndedAt == nil || !completed.EndedAt.Equal(fixedNow().Add(time.Hour)) {
		t.Fatalf("completed EndedAt = %v, want stamp", completed.EndedAt)
	}

	if _, err := completed.Transition(StatusLive, fixedNow()); apperrors.CodeOf(err) != apperrors.CodeSessionInvalidTransition {
		t.Fatalf("completed->live code = %q, want invalid transition", apperrors.CodeOf(err))
	}
	if _, err := session.Transition(StatusCompleted, fixedNow()); apperrors.CodeOf(err) != apperrors.CodeSessionInvalidTransition {
		t.Fatalf("scheduled->completed code = %q, want invalid transition", apperrors.CodeOf(err))
	}
}

func TestSessionPhaseNow(t *testing.T) {
	session := Session{ScheduledStart: fixedNow()}
	info := session.PhaseNow(fixedNow().Add(200 * time.Second))
	if info.Phase != PhaseWork1 {
		t.Fatalf("phase = %s, want work1", info.Phase)
	}
}
