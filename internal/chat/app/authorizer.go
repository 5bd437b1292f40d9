package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/ytchou/focus-squad/internal/session/domain"
	"github.com/ytchou/focus-squad/internal/session/storage"
)

var errSessionCanceled = errors.New("session is canceled")
var errSessionUnknown = errors.New("session not found")

// UserVerifier resolves a signed access token to a user id.
type UserVerifier interface {
	VerifyUser(token string) (string, error)
}

type wsAuthorizer interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
	IsSessionParticipant(ctx context.Context, sessionID string, userID string) (bool, error)
}

type membershipStore interface {
	storage.SessionStore
	storage.ParticipantStore
}

// sessionAuthorizer gates websocket access on token identity and
// session membership.
type sessionAuthorizer struct {
	verifier UserVerifier
	store    membershipStore
}

// NewSessionAuthorizer builds the production websocket authorizer.
func NewSessionAuthorizer(verifier UserVerifier, store membershipStore) wsAuthorizer {
	if verifier == nil || store == nil {
		return nil
	}
	return &sessionAuthorizer{verifier: verifier, store: store}
}

func (a *sessionAuthorizer) Authenticate(ctx context.Context, accessToken string) (string, error) {
	if a == nil || a.verifier == nil {
		return "", errors.New("auth is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", errors.New("access token is required")
	}
	userID, err := a.verifier.VerifyUser(accessToken)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token resolved to empty user id")
	}
	return strings.TrimSpace(userID), nil
}

func (a *sessionAuthorizer) IsSessionParticipant(ctx context.Context, sessionID string, userID string) (bool, error) {
	if a == nil || a.store == nil {
		return false, errors.New("session store is not configured")
	}

	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	if sessionID == "" || userID == "" {
		return false, nil
	}

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, errSessionUnknown
		}
		return false, err
	}
	if domain.StatusFromString(session.Status) == domain.StatusCanceled {
		return false, errSessionCanceled
	}

	participant, err := a.store.GetParticipant(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return participant.LeftAt == nil, nil
}
