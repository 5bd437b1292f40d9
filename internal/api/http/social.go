package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ytchou/focus-squad/internal/platform/requestctx"
	"github.com/ytchou/focus-squad/internal/social/profile"
)

type profilePayload struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toProfilePayload(record profile.Profile) profilePayload {
	return profilePayload{
		UserID:      record.UserID,
		Username:    record.Username,
		DisplayName: record.DisplayName,
		Bio:         record.Bio,
		CreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   record.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	record, err := h.social.UpsertProfile(
		r.Context(),
		requestctx.UserIDFromContext(r.Context()),
		payload.Username,
		payload.DisplayName,
		payload.Bio,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(record))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	record, err := h.social.GetProfile(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(record))
}

func (h *Handler) handleGetProfileByUsername(w http.ResponseWriter, r *http.Request) {
	record, err := h.social.GetProfileByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfilePayload(record))
}

func (h *Handler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.social.ListPartners(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if partners == nil {
		partners = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

func (h *Handler) handleAddPartner(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request payload")
		return
	}

	if err := h.social.AddPartner(r.Context(), requestctx.UserIDFromContext(r.Context()), payload.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemovePartner(w http.ResponseWriter, r *http.Request) {
	if err := h.social.RemovePartner(r.Context(), requestctx.UserIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCredits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	userID := requestctx.UserIDFromContext(r.Context())
	balance, err := h.social.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.social.Ledger(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ledger := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		line := map[string]any{
			"delta":      entry.Delta,
			"reason":     entry.Reason,
			"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if entry.SessionID != "" {
			line["session_id"] = entry.SessionID
		}
		ledger = append(ledger, line)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": balance,
		"ledger":  ledger,
	})
}

func (h *Handler) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.social.Streak(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := map[string]any{
		"current": streak.Current,
		"best":    streak.Best,
	}
	if !streak.LastDay.IsZero() {
		payload["last_day"] = streak.LastDay.UTC().Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, payload)
}
