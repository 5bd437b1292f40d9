package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ytchou/focus-squad/internal/platform/requestctx"
	"github.com/ytchou/focus-squad/internal/presence"
	"github.com/ytchou/focus-squad/internal/session/domain"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
)

type sessionPayload struct {
	ID         string  `json:"id"`
	HostUserID string  `json:"host_user_id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	StartsAt   string  `json:"starts_at"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	EndedAt    *string `json:"ended_at,omitempty"`
}

type participantPayload struct {
	UserID   string  `json:"user_id"`
	Role     string  `json:"role"`
	JoinedAt string  `json:"joined_at"`
	LeftAt   *string `json:"left_at,omitempty"`
	Tier     string  `json:"tier"`
}

type phasePayload struct {
	Phase                 string  `json:"phase"`
	ElapsedSeconds        int64   `json:"elapsed_seconds"`
	TimeRemainingSeconds  int64   `json:"time_remaining_seconds"`
	TotalRemainingSeconds int64   `json:"total_remaining_seconds"`
	Progress              float64 `json:"progress"`
}

type sessionViewPayload struct {
	Session      sessionPayload       `json:"session"`
	Participants []participantPayload `json:"participants"`
	Phase        phasePayload         `json:"phase"`
}

type eventPayload struct {
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func decodeEventPayload(raw []byte) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return decoded
}

func toSessionPayload(session domain.Session) sessionPayload {
	payload := sessionPayload{
		ID:         session.ID,
		HostUserID: session.HostUserID,
		Title:      session.Title,
		Status:     session.Status.String(),
		StartsAt:   session.ScheduledStart.UTC().Format(time.RFC3339),
		CreatedAt:  session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  session.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if session.EndedAt != nil {
		ended := session.EndedAt.UTC().Format(time.RFC3339)
		payload.EndedAt = &ended
	}
	return payload
}

func toParticipantPayload(participant domain.Participant) participantPayload {
	payload := participantPayload{
		UserID:   participant.UserID,
		Role:     participant.Role.String(),
		JoinedAt: participant.JoinedAt.UTC().Format(time.RFC3339),
		Tier:     participant.Tier.String(),
	}
	if participant.LeftAt != nil {
		left := participant.LeftAt.UTC().Format(time.RFC3339)
		payload.LeftAt = &left
	}
	return payload
}

func toPhasePayload(info domain.PhaseInfo) phasePayload {
	return phasePayload{
		Phase:                 info.Phase.String(),
		ElapsedSeconds:        int64(info.Elapsed / time.Second),
		TimeRemainingSeconds:  int64(info.TimeRemaining / time.Second),
		TotalRemainingSeconds: int64(info.TotalTimeRemaining / time.Second),
		Progress:              info.Progress,
	}
}

func (h *Handler) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title    string `json:"title"`
		StartsAt string `json:"starts_at"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}
	startsAt, err := time.Parse(time.RFC3339, payload.StartsAt)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "starts_at must be an RFC 3339 timestamp")
		return
	}

	session, err := h.sessions.Schedule(r.Context(), domain.CreateSessionInput{
		HostUserID:     requestctx.UserIDFromContext(r.Context()),
		Title:          payload.Title,
		ScheduledStart: startsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionPayload(session))
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	sessions, err := h.sessions.ListForUser(r.Context(), requestctx.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := make([]sessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, toSessionPayload(session))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": payload})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	participants := make([]participantPayload, 0, len(view.Participants))
	for _, participant := range view.Participants {
		participants = append(participants, toParticipantPayload(participant))
	}
	writeJSON(w, http.StatusOK, sessionViewPayload{
		Session:      toSessionPayload(view.Session),
		Participants: participants,
		Phase:        toPhasePayload(view.Phase),
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	afterSeq := uint64(0)
	if raw := strings.TrimSpace(query.Get("after_seq")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "after_seq must be a non-negative integer")
			return
		}
		afterSeq = parsed
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.sessions.Events(r.Context(), r.PathValue("id"), afterSeq, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		entry := eventPayload{
			Seq:       event.Seq,
			Type:      string(event.Type),
			UserID:    event.UserID,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		}
		if len(event.PayloadJSON) > 0 {
			entry.Payload = decodeEventPayload(event.PayloadJSON)
		}
		payload = append(payload, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": payload})
}

func (h *Handler) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	participant, err := h.sessions.Join(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantPayload(participant))
}

func (h *Handler) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Leave(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Cancel(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionPayload(session))
}

func (h *Handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Complete(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionPayload(session))
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Visible          bool     `json:"visible"`
		PictureInPicture bool     `json:"picture_in_picture"`
		InputConsent     bool     `json:"input_consent"`
		Input            []string `json:"input"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	input := sessionservice.HeartbeatInput{
		Visible:          payload.Visible,
		PictureInPicture: payload.PictureInPicture,
		InputConsent:     payload.InputConsent,
	}
	for _, kind := range payload.Input {
		parsed, ok := inputKindFromString(kind)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown input kind "+strconv.Quote(kind))
			return
		}
		input.Input = append(input.Input, parsed)
	}

	status, err := h.sessions.Heartbeat(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":    status.Tier.String(),
		"visible": status.Visible,
		"typing":  status.Typing,
	})
}

func inputKindFromString(name string) (presence.InputKind, bool) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "keyboard":
		return presence.InputKeyboard, true
	case "pointer":
		return presence.InputPointer, true
	case "touch":
		return presence.InputTouch, true
	default:
		return 0, false
	}
}

func (h *Handler) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RatedUserID string `json:"rated_user_id"`
		Score       int    `json:"score"`
		Comment     string `json:"comment"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	rating, err := h.sessions.SubmitRating(
		r.Context(),
		r.PathValue("id"),
		requestctx.UserIDFromContext(r.Context()),
		payload.RatedUserID,
		payload.Score,
		payload.Comment,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":    rating.SessionID,
		"rated_user_id": rating.RatedUserID,
		"score":         rating.Score,
		"comment":       rating.Comment,
		"created_at":    rating.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TTLSeconds int `json:"ttl_seconds"`
	}
	// An empty body means the default TTL.
	if err := decodeJSON(r, &payload); err != nil && r.ContentLength > 0 {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	ttl := time.Duration(payload.TTLSeconds) * time.Second
	token, err := h.sessions.CreateInvite(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()), ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token})
}

func (h *Handler) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	participant, err := h.sessions.AcceptInvite(r.Context(), payload.Token, requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantPayload(participant))
}
