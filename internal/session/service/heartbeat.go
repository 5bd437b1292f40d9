package service

import (
	"context"
	"fmt"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/presence"
)

// HeartbeatInput carries one batch of client presence signals.
type HeartbeatInput struct {
	Visible          bool
	PictureInPicture bool
	InputConsent     bool
	// Input holds the device kinds observed since the last heartbeat.
	Input []presence.InputKind
}

// HeartbeatStatus reports the participant's classified state after a
// heartbeat.
type HeartbeatStatus struct {
	Tier    presence.Tier
	Visible bool
	Typing  bool
}

// Heartbeat feeds a participant's presence monitor and persists tier
// changes. Only active participants of an unfinished session may report.
func (s *Service) Heartbeat(ctx context.Context, sessionID, userID string, input HeartbeatInput) (HeartbeatStatus, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return HeartbeatStatus{}, err
	}
	if session.Status.IsFinal() {
		return HeartbeatStatus{}, apperrors.New(apperrors.CodeSessionAlreadyFinalized, "session already finished")
	}
	participant, err := s.getParticipant(ctx, sessionID, userID)
	if err != nil {
		return HeartbeatStatus{}, err
	}
	if !participant.Active() {
		return HeartbeatStatus{}, apperrors.New(apperrors.CodeSessionNotParticipant, "participant already left this session")
	}

	monitor := s.monitorFor(sessionID, userID)
	monitor.SetInputConsent(input.InputConsent)
	monitor.SetVisible(input.Visible)
	monitor.SetPictureInPicture(input.PictureInPicture)
	for _, kind := range input.Input {
		monitor.InputSignal(kind)
	}

	tier := monitor.Poll()
	if tier != participant.Tier {
		participant.Tier = tier
		participant.TierChangedAt = s.now().UTC()
		if err := s.store.PutParticipant(ctx, toParticipantRecord(participant)); err != nil {
			return HeartbeatStatus{}, fmt.Errorf("put participant: %w", err)
		}
	}

	return HeartbeatStatus{
		Tier:    tier,
		Visible: monitor.Visible(),
		Typing:  monitor.Typing(),
	}, nil
}

func (s *Service) monitorFor(sessionID, userID string) *presence.Monitor {
	key := sessionID + "/" + userID
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()
	if monitor, ok := s.monitors[key]; ok {
		return monitor
	}
	monitor := presence.NewMonitor(presence.Config{
		Enabled: s.presenceEnabled,
		Now:     s.now,
	})
	s.monitors[key] = monitor
	return monitor
}

func (s *Service) dropMonitor(sessionID, userID string) {
	key := sessionID + "/" + userID
	s.monitorMu.Lock()
	delete(s.monitors, key)
	s.monitorMu.Unlock()
}
