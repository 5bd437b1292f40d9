// Package service coordinates focus session lifecycle operations over the
// storage contracts.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/platform/id"
	"github.com/ytchou/focus-squad/internal/presence"
	"github.com/ytchou/focus-squad/internal/session/domain"
	"github.com/ytchou/focus-squad/internal/session/storage"
)

// Awarder grants completion rewards to a participant. Implementations
// live in the social service.
type Awarder interface {
	AwardSessionCompletion(ctx context.Context, userID, sessionID string, activeAtCompletion bool, completedAt time.Time) error
}

// ClockTracker follows session timelines so phase boundaries can be
// observed without polling. Track starts following a session and Forget
// stops early, for sessions that cancel or complete ahead of schedule.
type ClockTracker interface {
	Track(sessionID string, startsAt time.Time)
	Forget(sessionID string)
}

// Options contains optional service dependencies.
type Options struct {
	Now         func() time.Time
	IDGenerator func() (string, error)
	Awards      Awarder
	Invites     InviteSigner
	Clock       ClockTracker
	// PresenceEnabled gates the presence classifier. Disabled monitors
	// fail open to the active tier.
	PresenceEnabled bool
}

// Service implements session scheduling, membership, presence heartbeats,
// ratings and invites.
type Service struct {
	store       storage.Store
	awards      Awarder
	invites     InviteSigner
	clock       ClockTracker
	now         func() time.Time
	idGenerator func() (string, error)

	presenceEnabled bool
	monitorMu       sync.Mutex
	monitors        map[string]*presence.Monitor
}

// NewService creates a session service backed by the given store.
func NewService(store storage.Store, options Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.IDGenerator == nil {
		options.IDGenerator = id.NewID
	}
	return &Service{
		store:           store,
		awards:          options.Awards,
		invites:         options.Invites,
		clock:           options.Clock,
		now:             options.Now,
		idGenerator:     options.IDGenerator,
		presenceEnabled: options.PresenceEnabled,
		monitors:        make(map[string]*presence.Monitor),
	}, nil
}

// View combines a session with its members and live timeline position.
type View struct {
	Session      domain.Session
	Participants []domain.Participant
	Phase        domain.PhaseInfo
}

// Schedule validates and persists a new session with the host as its
// first participant.
func (s *Service) Schedule(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error) {
	session, err := domain.CreateSession(input, s.now, s.idGenerator)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutSession(ctx, toSessionRecord(session)); err != nil {
		return domain.Session{}, fmt.Errorf("put session: %w", err)
	}

	host, err := domain.JoinSession(session, nil, session.HostUserID, domain.RoleHost, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutParticipant(ctx, toParticipantRecord(host)); err != nil {
		return domain.Session{}, fmt.Errorf("put host participant: %w", err)
	}

	s.appendEvent(ctx, session.ID, domain.EventTypeSessionScheduled, session.HostUserID, map[string]string{
		"starts_at": session.ScheduledStart.Format(time.RFC3339),
	})
	if s.clock != nil {
		s.clock.Track(session.ID, session.ScheduledStart)
	}
	return session, nil
}

// Get loads a session view with the phase computed at the current instant.
func (s *Service) Get(ctx context.Context, sessionID string) (View, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	participants, err := s.listParticipants(ctx, session.ID)
	if err != nil {
		return View{}, err
	}
	return View{
		Session:      session,
		Participants: participants,
		Phase:        session.PhaseNow(s.now()),
	}, nil
}

// ListForUser lists newest-first sessions the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.store.ListSessionsForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]domain.Session, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, fromSessionRecord(record))
	}
	return sessions, nil
}

// Join adds a partner to a session.
func (s *Service) Join(ctx context.Context, sessionID string, userID string) (domain.Participant, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Participant{}, err
	}
	existing, err := s.listParticipants(ctx, session.ID)
	if err != nil {
		return domain.Participant{}, err
	}

	participant, err := domain.JoinSession(session, existing, userID, domain.RolePartner, s.now())
	if err != nil {
		return domain.Participant{}, err
	}
	if err := s.store.PutParticipant(ctx, toParticipantRecord(participant)); err != nil {
		return domain.Participant{}, fmt.Errorf("put participant: %w", err)
	}

	s.appendEvent(ctx, session.ID, domain.EventTypeParticipantJoined, participant.UserID, nil)
	return participant, nil
}

// Leave marks a participant as gone. Participants can leave at any point
// before the session is finalized.
func (s *Service) Leave(ctx context.Context, sessionID string, userID string) error {
	participant, err := s.getParticipant(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !participant.Active() {
		return apperrors.New(apperrors.CodeSessionNotParticipant, "participant already left this session")
	}

	leftAt := s.now().UTC()
	participant.LeftAt = &leftAt
	if err := s.store.PutParticipant(ctx, toParticipantRecord(participant)); err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	s.dropMonitor(sessionID, userID)

	s.appendEvent(ctx, sessionID, domain.EventTypeParticipantLeft, participant.UserID, nil)
	return nil
}

// Cancel terminates a session before completion. Only the host may cancel.
func (s *Service) Cancel(ctx context.Context, sessionID string, actorID string) (domain.Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.HostUserID != strings.TrimSpace(actorID) {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionHostOnly, "only the host can cancel a session")
	}
	if session.Status.IsFinal() {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionAlreadyFinalized, "session already finished")
	}

	canceled, err := session.Transition(domain.StatusCanceled, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutSession(ctx, toSessionRecord(canceled)); err != nil {
		return domain.Session{}, fmt.Errorf("put session: %w", err)
	}

	s.appendEvent(ctx, session.ID, domain.EventTypeSessionCanceled, actorID, nil)
	if s.clock != nil {
		s.clock.Forget(session.ID)
	}
	return canceled, nil
}

// Complete finalizes a session and grants completion awards. The timeline
// must have run its course, or the host may force completion once the
// social phase has been reached.
func (s *Service) Complete(ctx context.Context, sessionID string, actorID string) (domain.Session, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status.IsFinal() {
		return domain.Session{}, apperrors.New(apperrors.CodeSessionAlreadyFinalized, "session already finished")
	}

	now := s.now()
	info := session.PhaseNow(now)
	elapsed := info.Phase == domain.PhaseCompleted
	hostForced := session.HostUserID == strings.TrimSpace(actorID) && info.Phase == domain.PhaseSocial
	if !elapsed && !hostForced {
		return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionNotCompletable,
			"session timeline has not finished", map[string]string{"phase": info.Phase.String()})
	}

	return s.finalize(ctx, session, actorID, now)
}

// AdvancePhase records a phase boundary crossing observed by the session
// clock. It promotes a scheduled session to live on the first boundary
// and finalizes the session when the timeline completes.
func (s *Service) AdvancePhase(ctx context.Context, sessionID string, from, to domain.Phase, at time.Time) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.IsFinal() {
		return nil
	}

	if session.Status == domain.StatusScheduled && to != domain.PhaseIdle {
		live, err := session.Transition(domain.StatusLive, at)
		if err != nil {
			return err
		}
		if err := s.store.PutSession(ctx, toSessionRecord(live)); err != nil {
			return fmt.Errorf("put session: %w", err)
		}
		session = live
	}

	s.appendEvent(ctx, session.ID, domain.EventTypePhaseAdvanced, "", map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})

	if to == domain.PhaseCompleted {
		if _, err := s.finalize(ctx, session, session.HostUserID, at); err != nil {
			return err
		}
	}
	return nil
}

// Events lists the session event log strictly after the given sequence.
func (s *Service) Events(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := s.store.ListEvents(ctx, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]domain.Event, 0, len(records))
	for _, record := range records {
		events = append(events, domain.Event{
			SessionID:   record.SessionID,
			Seq:         record.Seq,
			Timestamp:   record.CreatedAt,
			Type:        domain.EventType(record.Type),
			UserID:      record.UserID,
			PayloadJSON: []byte(record.Payload),
		})
	}
	return events, nil
}

// SubmitRating records a post-session partner rating.
func (s *Service) SubmitRating(ctx context.Context, sessionID, raterID, ratedID string, score int, comment string) (domain.Rating, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return domain.Rating{}, err
	}
	if session.Status != domain.StatusCompleted {
		return domain.Rating{}, apperrors.New(apperrors.CodeSessionNotCompletable,
			"ratings open once the session completes")
	}

	for _, userID := range []string{raterID, ratedID} {
		if _, err := s.getParticipant(ctx, sessionID, userID); err != nil {
			return domain.Rating{}, err
		}
	}

	rating, err := domain.NewRating(sessionID, raterID, ratedID, score, comment, s.now())
	if err != nil {
		return domain.Rating{}, err
	}
	if err := s.store.PutRating(ctx, storage.RatingRecord{
		SessionID: rating.SessionID,
		RaterID:   rating.RaterUserID,
		RateeID:   rating.RatedUserID,
		Score:     rating.Score,
		Comment:   rating.Comment,
		CreatedAt: rating.CreatedAt,
	}); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.Rating{}, apperrors.New(apperrors.CodeRatingDuplicate, "partner already rated for this session")
		}
		return domain.Rating{}, fmt.Errorf("put rating: %w", err)
	}
	return rating, nil
}

func (s *Service) finalize(ctx context.Context, session domain.Session, actorID string, at time.Time) (domain.Session, error) {
	if session.Status == domain.StatusScheduled {
		live, err := session.Transition(domain.StatusLive, at)
		if err != nil {
			return domain.Session{}, err
		}
		session = live
	}
	completed, err := session.Transition(domain.StatusCompleted, at)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutSession(ctx, toSessionRecord(completed)); err != nil {
		return domain.Session{}, fmt.Errorf("put session: %w", err)
	}

	s.appendEvent(ctx, completed.ID, domain.EventTypeSessionCompleted, actorID, nil)
	if s.clock != nil {
		s.clock.Forget(completed.ID)
	}

	if s.awards != nil {
		participants, err := s.listParticipants(ctx, completed.ID)
		if err != nil {
			return domain.Session{}, err
		}
		for _, participant := range participants {
			if !participant.Active() || participant.Tier == presence.TierGhosting {
				continue
			}
			active := participant.Tier == presence.TierActive
			if err := s.awards.AwardSessionCompletion(ctx, participant.UserID, completed.ID, active, at.UTC()); err != nil {
				return domain.Session{}, fmt.Errorf("award completion for %s: %w", participant.UserID, err)
			}
		}
	}
	return completed, nil
}

func (s *Service) getSession(ctx context.Context, sessionID string) (domain.Session, error) {
	record, err := s.store.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.New(apperrors.CodeNotFound, "session not found")
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return fromSessionRecord(record), nil
}

func (s *Service) getParticipant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	record, err := s.store.GetParticipant(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Participant{}, apperrors.New(apperrors.CodeSessionNotParticipant, "user is not in this session")
		}
		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return fromParticipantRecord(record), nil
}

func (s *Service) listParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	records, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	participants := make([]domain.Participant, 0, len(records))
	for _, record := range records {
		participants = append(participants, fromParticipantRecord(record))
	}
	return participants, nil
}

// appendEvent records a timeline event. Event log failures do not fail
// the operation that produced them.
func (s *Service) appendEvent(ctx context.Context, sessionID string, eventType domain.EventType, userID string, payload map[string]string) {
	var encoded string
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return
		}
		encoded = string(raw)
	}
	_, _ = s.store.AppendEvent(ctx, storage.EventRecord{
		SessionID: sessionID,
		Type:      string(eventType),
		UserID:    userID,
		Payload:   encoded,
		CreatedAt: s.now().UTC(),
	})
}

func toSessionRecord(session domain.Session) storage.SessionRecord {
	return storage.SessionRecord{
		ID:        session.ID,
		HostID:    session.HostUserID,
		Title:     session.Title,
		Status:    session.Status.String(),
		StartsAt:  session.ScheduledStart,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		EndedAt:   session.EndedAt,
	}
}

func fromSessionRecord(record storage.SessionRecord) domain.Session {
	return domain.Session{
		ID:             record.ID,
		HostUserID:     record.HostID,
		Title:          record.Title,
		ScheduledStart: record.StartsAt,
		Status:         domain.StatusFromString(record.Status),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		EndedAt:        record.EndedAt,
	}
}

func toParticipantRecord(participant domain.Participant) storage.ParticipantRecord {
	return storage.ParticipantRecord{
		SessionID:     participant.SessionID,
		UserID:        participant.UserID,
		Role:          participant.Role.String(),
		JoinedAt:      participant.JoinedAt,
		LeftAt:        participant.LeftAt,
		Tier:          participant.Tier.String(),
		TierChangedAt: participant.TierChangedAt,
	}
}

func fromParticipantRecord(record storage.ParticipantRecord) domain.Participant {
	return domain.Participant{
		SessionID:     record.SessionID,
		UserID:        record.UserID,
		Role:          domain.RoleFromString(record.Role),
		JoinedAt:      record.JoinedAt,
		LeftAt:        record.LeftAt,
		Tier:          presence.TierFromString(record.Tier),
		TierChangedAt: record.TierChangedAt,
	}
}
