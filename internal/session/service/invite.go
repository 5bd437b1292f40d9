package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	"github.com/ytchou/focus-squad/internal/session/domain"
	"github.com/ytchou/focus-squad/internal/session/storage"
)

// DefaultInviteTTL is how long an invite stays redeemable by default.
const DefaultInviteTTL = time.Hour

// InviteClaims are the verified contents of a signed invite token.
type InviteClaims struct {
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

// InviteSigner signs and verifies invite tokens. Implementations live in
// the auth token package.
type InviteSigner interface {
	Issue(sessionID, tokenID string, expiresAt time.Time) (string, error)
	Verify(token string) (InviteClaims, error)
}

// CreateInvite issues a signed single-use invite token for a session.
// Only the host may invite.
func (s *Service) CreateInvite(ctx context.Context, sessionID, actorID string, ttl time.Duration) (string, error) {
	if s.invites == nil {
		return "", fmt.Errorf("invite signer is not configured")
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.HostUserID != actorID {
		return "", apperrors.New(apperrors.CodeSessionHostOnly, "only the host can create invites")
	}
	if session.Status.IsFinal() {
		return "", apperrors.New(apperrors.CodeSessionNotJoinable, "session is no longer joinable")
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}

	tokenID, err := s.idGenerator()
	if err != nil {
		return "", fmt.Errorf("generate invite id: %w", err)
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	signed, err := s.invites.Issue(session.ID, tokenID, expiresAt)
	if err != nil {
		return "", fmt.Errorf("sign invite: %w", err)
	}
	if err := s.store.PutInvite(ctx, storage.InviteRecord{
		Token:     tokenID,
		SessionID: session.ID,
		CreatedBy: actorID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("put invite: %w", err)
	}
	return signed, nil
}

// AcceptInvite redeems a signed token and joins the session. Each invite
// admits exactly one user.
func (s *Service) AcceptInvite(ctx context.Context, token, userID string) (domain.Participant, error) {
	if s.invites == nil {
		return domain.Participant{}, fmt.Errorf("invite signer is not configured")
	}
	claims, err := s.invites.Verify(token)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeUnknown {
			return domain.Participant{}, err
		}
		return domain.Participant{}, apperrors.Wrap(apperrors.CodeInviteInvalid, "invite token is not valid", err)
	}

	record, err := s.store.GetInvite(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Participant{}, apperrors.New(apperrors.CodeInviteInvalid, "invite token is not valid")
		}
		return domain.Participant{}, fmt.Errorf("get invite: %w", err)
	}
	if record.SessionID != claims.SessionID {
		return domain.Participant{}, apperrors.New(apperrors.CodeInviteMismatch, "invite does not match this session")
	}
	if record.UsedAt != nil {
		return domain.Participant{}, apperrors.New(apperrors.CodeInviteUsed, "invite was already redeemed")
	}
	now := s.now().UTC()
	if !now.Before(record.ExpiresAt) {
		return domain.Participant{}, apperrors.New(apperrors.CodeInviteExpired, "invite expired")
	}

	participant, err := s.Join(ctx, record.SessionID, userID)
	if err != nil {
		return domain.Participant{}, err
	}
	if err := s.store.MarkInviteUsed(ctx, record.Token, participant.UserID, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.Participant{}, apperrors.New(apperrors.CodeInviteUsed, "invite was already redeemed")
		}
		return domain.Participant{}, fmt.Errorf("mark invite used: %w", err)
	}
	return participant, nil
}
