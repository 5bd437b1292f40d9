package domain

import (
	"fmt"
	"testing"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/presence"
)

func testSession() Session {
	return Session{ID: "session-1", HostUserID: "host", Status: StatusScheduled}
}

func TestJoinSession(t *testing.T) {
	participant, err := JoinSession(testSession(), nil, "user-2", RolePartner, fixedNow())
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if participant.SessionID != "session-1" || participant.UserID != "user-2" {
		t.Fatalf("participant = %+v", participant)
	}
	if participant.Tier != presence.TierActive {
		t.Fatalf("tier = %s, want active on join", participant.Tier)
	}
	if !participant.Active() {
		t.Fatal("participant should be active after joining")
	}
}

func TestJoinSessionRejectsDuplicate(t *testing.T) {
	existing := []Participant{{SessionID: "session-1", UserID: "user-2"}}
	_, err := JoinSession(testSession(), existing, "user-2", RolePartner, fixedNow())
	if apperrors.CodeOf(err) != apperrors.CodeSessionAlreadyJoined {
		t.Fatalf("code = %q, want already joined", apperrors.CodeOf(err))
	}
}

func TestJoinSessionAllowsRejoinAfterLeaving(t *testing.T) {
	leftAt := fixedNow()
	existing := []Participant{{SessionID: "session-1", UserID: "user-2", LeftAt: &leftAt}}
	if _, err := JoinSession(testSession(), existing, "user-2", RolePartner, fixedNow()); err != nil {
		t.Fatalf("rejoin after leaving: %v", err)
	}
}

func TestJoinSessionEnforcesCapacity(t *testing.T) {
	var existing []Participant
	for i := 0; i < MaxPartners; i++ {
		existing = append(existing, Participant{SessionID: "session-1", UserID: fmt.Sprintf("user-%d", i)})
	}
	_, err := JoinSession(testSession(), existing, "late-user", RolePartner, fixedNow())
	if apperrors.CodeOf(err) != apperrors.CodeSessionFull {
		t.Fatalf("code = %q, want session full", apperrors.CodeOf(err))
	}
}

func TestJoinSessionCountsOnlyActiveMembers(t *testing.T) {
	leftAt := fixedNow()
	var existing []Participant
	for i := 0; i < MaxPartners; i++ {
		existing = append(existing, Participant{SessionID: "session-1", UserID: fmt.Sprintf("user-%d", i), LeftAt: &leftAt})
	}
	if _, err := JoinSession(testSession(), existing, "late-user", RolePartner, fixedNow()); err != nil {
		t.Fatalf("join with only departed members: %v", err)
	}
}

func TestJoinSessionRejectsFinalizedSessions(t *testing.T) {
	session := testSession()
	endedAt := fixedNow()
	session.Status = StatusCanceled
	session.EndedAt = &endedAt
	_, err := JoinSession(session, nil, "user-2", RolePartner, fixedNow())
	if apperrors.CodeOf(err) != apperrors.CodeSessionNotJoinable {
		t.Fatalf("code = %q, want not joinable", apperrors.CodeOf(err))
	}
}

func TestJoinSessionAllowsJoiningLiveSessions(t *testing.T) {
	session := testSession()
	session.Status = StatusLive
	if _, err := JoinSession(session, nil, "user-2", RolePartner, fixedNow().Add(time.Minute)); err != nil {
		t.Fatalf("join live session: %v", err)
	}
}
