// Package api exposes the focus squad services over a JSON HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
	errori18n "github.com/ytchou/focus-squad/internal/platform/errors/i18n"
	"github.com/ytchou/focus-squad/internal/platform/requestctx"
	roomsservice "github.com/ytchou/focus-squad/internal/rooms/service"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
	socialservice "github.com/ytchou/focus-squad/internal/social/service"
)

const maxRequestBodyBytes = 1 << 20

// UserVerifier resolves a bearer token to a user id.
type UserVerifier interface {
	VerifyUser(token string) (string, error)
}

// Config carries the services the HTTP surface fronts.
type Config struct {
	Sessions *sessionservice.Service
	Social   *socialservice.Service
	Rooms    *roomsservice.Service
	Verifier UserVerifier
	// Chat optionally serves the websocket endpoint at /ws.
	Chat http.Handler
}

// Handler routes JSON API requests to the underlying services.
type Handler struct {
	sessions *sessionservice.Service
	social   *socialservice.Service
	rooms    *roomsservice.Service
	verifier UserVerifier
	chat     http.Handler
}

// New creates an API handler over the given services.
func New(config Config) (*Handler, error) {
	if config.Sessions == nil {
		return nil, errors.New("session service is required")
	}
	if config.Social == nil {
		return nil, errors.New("social service is required")
	}
	if config.Rooms == nil {
		return nil, errors.New("rooms service is required")
	}
	if config.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	return &Handler{
		sessions: config.Sessions,
		social:   config.Social,
		rooms:    config.Rooms,
		verifier: config.Verifier,
		chat:     config.Chat,
	}, nil
}

// RegisterRoutes registers all API endpoints on the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}

	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /v1/sessions", h.requireUser(h.handleScheduleSession))
	mux.HandleFunc("GET /v1/sessions", h.requireUser(h.handleListSessions))
	mux.HandleFunc("GET /v1/sessions/{id}", h.requireUser(h.handleGetSession))
	mux.HandleFunc("GET /v1/sessions/{id}/events", h.requireUser(h.handleListEvents))
	mux.HandleFunc("POST /v1/sessions/{id}/join", h.requireUser(h.handleJoinSession))
	mux.HandleFunc("POST /v1/sessions/{id}/leave", h.requireUser(h.handleLeaveSession))
	mux.HandleFunc("POST /v1/sessions/{id}/cancel", h.requireUser(h.handleCancelSession))
	mux.HandleFunc("POST /v1/sessions/{id}/complete", h.requireUser(h.handleCompleteSession))
	mux.HandleFunc("POST /v1/sessions/{id}/heartbeat", h.requireUser(h.handleHeartbeat))
	mux.HandleFunc("POST /v1/sessions/{id}/ratings", h.requireUser(h.handleSubmitRating))
	mux.HandleFunc("POST /v1/sessions/{id}/invites", h.requireUser(h.handleCreateInvite))
	mux.HandleFunc("POST /v1/invites/accept", h.requireUser(h.handleAcceptInvite))

	mux.HandleFunc("PUT /v1/profile", h.requireUser(h.handleUpsertProfile))
	mux.HandleFunc("GET /v1/profile", h.requireUser(h.handleGetProfile))
	mux.HandleFunc("GET /v1/profiles/{username}", h.requireUser(h.handleGetProfileByUsername))
	mux.HandleFunc("GET /v1/partners", h.requireUser(h.handleListPartners))
	mux.HandleFunc("POST /v1/partners", h.requireUser(h.handleAddPartner))
	mux.HandleFunc("DELETE /v1/partners/{id}", h.requireUser(h.handleRemovePartner))
	mux.HandleFunc("GET /v1/credits", h.requireUser(h.handleCredits))
	mux.HandleFunc("GET /v1/streak", h.requireUser(h.handleStreak))

	mux.HandleFunc("GET /v1/rooms/catalog", h.requireUser(h.handleRoomCatalog))
	mux.HandleFunc("GET /v1/rooms/layout", h.requireUser(h.handleRoomLayout))
	mux.HandleFunc("POST /v1/rooms/items", h.requireUser(h.handleBuyItem))
	mux.HandleFunc("POST /v1/rooms/placements", h.requireUser(h.handlePlaceItem))
	mux.HandleFunc("DELETE /v1/rooms/placements/{itemID}", h.requireUser(h.handleRemovePlacement))

	if h.chat != nil {
		mux.Handle("/ws", h.chat)
	}
}

// requireUser authenticates the bearer token and stores the resolved
// user id in the request context.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "bearer token is required")
			return
		}
		userID, err := h.verifier.VerifyUser(token)
		if err != nil || strings.TrimSpace(userID) == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid access token")
			return
		}
		ctx := requestctx.WithUserID(r.Context(), strings.TrimSpace(userID))
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func decodeJSON(r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(target)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a domain error to an HTTP status and a localized
// user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.CodeOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %s %s failed: %v", r.Method, r.URL.Path, err)
	}

	catalog := errori18n.GetCatalog(requestLocale(r))
	writeJSON(w, status, errorResponse{
		Error: errorBody{
			Code:    string(code),
			Message: catalog.Format(string(code), apperrors.MetadataOf(err)),
		},
	})
}

func requestLocale(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if header == "" {
		return ""
	}
	first := strings.Split(header, ",")[0]
	return strings.TrimSpace(strings.Split(first, ";")[0])
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}
