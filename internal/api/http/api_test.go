package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ytchou/focus-squad/internal/auth/token"
	roomscatalog "github.com/ytchou/focus-squad/internal/rooms/catalog"
	roomsservice "github.com/ytchou/focus-squad/internal/rooms/service"
	roomssqlite "github.com/ytchou/focus-squad/internal/rooms/storage/sqlite"
	"github.com/ytchou/focus-squad/internal/session/domain"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
	sessionsqlite "github.com/ytchou/focus-squad/internal/session/storage/sqlite"
	socialservice "github.com/ytchou/focus-squad/internal/social/service"
	socialsqlite "github.com/ytchou/focus-squad/internal/social/storage/sqlite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	server *httptest.Server
	signer *token.Signer
	clock  *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := token.NewSigner(token.Config{
		Issuer:   "https://focus-squad.test",
		Audience: "focus-squad",
		Key:      privateKey,
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	dir := t.TempDir()

	sessionStore, err := sessionsqlite.Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { _ = sessionStore.Close() })

	socialStore, err := socialsqlite.Open(filepath.Join(dir, "social.db"))
	if err != nil {
		t.Fatalf("open social store: %v", err)
	}
	t.Cleanup(func() { _ = socialStore.Close() })

	roomStore, err := roomssqlite.Open(filepath.Join(dir, "rooms.db"))
	if err != nil {
		t.Fatalf("open rooms store: %v", err)
	}
	t.Cleanup(func() { _ = roomStore.Close() })

	social, err := socialservice.NewService(socialStore, socialservice.Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("new social service: %v", err)
	}

	counter := 0
	sessions, err := sessionservice.NewService(sessionStore, sessionservice.Options{
		Now: clock.Now,
		IDGenerator: func() (string, error) {
			counter++
			return fmt.Sprintf("id-%d", counter), nil
		},
		Awards:          social,
		Invites:         signer,
		PresenceEnabled: true,
	})
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}

	items, err := roomscatalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	rooms, err := roomsservice.NewService(roomStore, items, social, roomsservice.Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("new rooms service: %v", err)
	}

	handler, err := New(Config{
		Sessions: sessions,
		Social:   social,
		Rooms:    rooms,
		Verifier: signer,
	})
	if err != nil {
		t.Fatalf("new api handler: %v", err)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, signer: signer, clock: clock}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := e.signer.IssueUser(userID, e.clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue user token: %v", err)
	}
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, accessToken string, body any) *http.Response {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(encoded)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func (e *testEnv) schedule(t *testing.T, hostToken string, startsIn time.Duration) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/v1/sessions", hostToken, map[string]any{
		"title":     "deep work",
		"starts_at": e.clock.Now().Add(startsIn).Format(time.RFC3339),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("schedule status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created sessionPayload
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("schedule returned empty session id")
	}
	return created.ID
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/sessions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	resp = env.do(t, http.MethodGet, "/v1/sessions", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestScheduleAndGetSession(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")

	sessionID := env.schedule(t, hostToken, 10*time.Minute)

	resp := env.do(t, http.MethodGet, "/v1/sessions/"+sessionID, hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var view sessionViewPayload
	decodeBody(t, resp, &view)
	if view.Session.HostUserID != "host-1" {
		t.Fatalf("host = %q, want %q", view.Session.HostUserID, "host-1")
	}
	if view.Session.Status != "scheduled" {
		t.Fatalf("status = %q, want %q", view.Session.Status, "scheduled")
	}
	if view.Phase.Phase != "idle" {
		t.Fatalf("phase = %q, want %q", view.Phase.Phase, "idle")
	}
	if len(view.Participants) != 1 || view.Participants[0].Role != "host" {
		t.Fatalf("participants = %+v, want single host", view.Participants)
	}
}

func TestJoinAndLeaveSession(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")
	partnerToken := env.token(t, "partner-1")

	sessionID := env.schedule(t, hostToken, 10*time.Minute)

	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/join", partnerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var joined participantPayload
	decodeBody(t, resp, &joined)
	if joined.Role != "partner" {
		t.Fatalf("role = %q, want %q", joined.Role, "partner")
	}

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/leave", partnerToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("leave status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestCancelRequiresHost(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")
	partnerToken := env.token(t, "partner-1")

	sessionID := env.schedule(t, hostToken, 10*time.Minute)
	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/join", partnerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/cancel", partnerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("partner cancel status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	var failure errorResponse
	decodeBody(t, resp, &failure)
	if failure.Error.Code != "SESSION_HOST_ONLY" {
		t.Fatalf("error code = %q, want %q", failure.Error.Code, "SESSION_HOST_ONLY")
	}

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/cancel", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("host cancel status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestGetMissingSessionLocalizesError(t *testing.T) {
	env := newTestEnv(t)
	accessToken := env.token(t, "user-1")

	resp := env.do(t, http.MethodGet, "/v1/sessions/missing", accessToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	var failure errorResponse
	decodeBody(t, resp, &failure)
	if failure.Error.Code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want %q", failure.Error.Code, "NOT_FOUND")
	}
	if failure.Error.Message == "" || failure.Error.Message == "NOT_FOUND" {
		t.Fatalf("error message = %q, want a localized message", failure.Error.Message)
	}
}

func TestHeartbeatReportsPresence(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")

	sessionID := env.schedule(t, hostToken, time.Minute)
	env.clock.Advance(2 * time.Minute)

	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/heartbeat", hostToken, map[string]any{
		"visible":       true,
		"input_consent": true,
		"input":         []string{"keyboard"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var status struct {
		Tier    string `json:"tier"`
		Visible bool   `json:"visible"`
		Typing  bool   `json:"typing"`
	}
	decodeBody(t, resp, &status)
	if status.Tier != "active" {
		t.Fatalf("tier = %q, want %q", status.Tier, "active")
	}
	if !status.Visible || !status.Typing {
		t.Fatalf("visible = %v, typing = %v, want both true", status.Visible, status.Typing)
	}

	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/heartbeat", hostToken, map[string]any{
		"visible": true,
		"input":   []string{"thoughts"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown input kind status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCompleteSessionAwardsCredits(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")

	sessionID := env.schedule(t, hostToken, time.Minute)
	env.clock.Advance(time.Minute + domain.TotalDuration)

	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/complete", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var completed sessionPayload
	decodeBody(t, resp, &completed)
	if completed.Status != "completed" {
		t.Fatalf("status = %q, want %q", completed.Status, "completed")
	}

	resp = env.do(t, http.MethodGet, "/v1/credits", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credits status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var credits struct {
		Balance int              `json:"balance"`
		Ledger  []map[string]any `json:"ledger"`
	}
	decodeBody(t, resp, &credits)
	if credits.Balance != 15 {
		t.Fatalf("balance = %d, want 15", credits.Balance)
	}

	resp = env.do(t, http.MethodGet, "/v1/streak", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("streak status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var streak struct {
		Current int `json:"current"`
		Best    int `json:"best"`
	}
	decodeBody(t, resp, &streak)
	if streak.Current != 1 || streak.Best != 1 {
		t.Fatalf("streak = %d/%d, want 1/1", streak.Current, streak.Best)
	}
}

func TestInviteFlow(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")
	guestToken := env.token(t, "guest-1")

	sessionID := env.schedule(t, hostToken, 10*time.Minute)

	resp := env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/invites", hostToken, map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invite status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var invite struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &invite)
	if invite.Token == "" {
		t.Fatal("create invite returned empty token")
	}

	resp = env.do(t, http.MethodPost, "/v1/invites/accept", guestToken, map[string]any{"token": invite.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept invite status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var joined participantPayload
	decodeBody(t, resp, &joined)
	if joined.UserID != "guest-1" || joined.Role != "partner" {
		t.Fatalf("joined = %+v, want guest-1 partner", joined)
	}

	resp = env.do(t, http.MethodPost, "/v1/invites/accept", env.token(t, "guest-2"), map[string]any{"token": invite.Token})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reused invite status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestProfileLifecycle(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.token(t, "alice")
	bobToken := env.token(t, "bob")

	resp := env.do(t, http.MethodPut, "/v1/profile", aliceToken, map[string]any{
		"username":     "  Deep_Worker  ",
		"display_name": "Alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var created profilePayload
	decodeBody(t, resp, &created)
	if created.Username != "deep_worker" {
		t.Fatalf("username = %q, want %q", created.Username, "deep_worker")
	}

	resp = env.do(t, http.MethodPut, "/v1/profile", bobToken, map[string]any{"username": "deep_worker"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate username status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	var failure errorResponse
	decodeBody(t, resp, &failure)
	if failure.Error.Code != "PROFILE_USERNAME_TAKEN" {
		t.Fatalf("error code = %q, want %q", failure.Error.Code, "PROFILE_USERNAME_TAKEN")
	}

	resp = env.do(t, http.MethodGet, "/v1/profiles/deep_worker", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var found profilePayload
	decodeBody(t, resp, &found)
	if found.UserID != "alice" {
		t.Fatalf("user id = %q, want %q", found.UserID, "alice")
	}
}

func TestPartnerManagement(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.token(t, "alice")
	bobToken := env.token(t, "bob")

	resp := env.do(t, http.MethodPut, "/v1/profile", bobToken, map[string]any{"username": "bob"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/v1/partners", aliceToken, map[string]any{"user_id": "bob"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add partner status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = env.do(t, http.MethodGet, "/v1/partners", aliceToken, nil)
	var partners struct {
		Partners []string `json:"partners"`
	}
	decodeBody(t, resp, &partners)
	if len(partners.Partners) != 1 || partners.Partners[0] != "bob" {
		t.Fatalf("partners = %v, want [bob]", partners.Partners)
	}

	resp = env.do(t, http.MethodDelete, "/v1/partners/bob", aliceToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove partner status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestRoomPurchaseAndPlacement(t *testing.T) {
	env := newTestEnv(t)
	hostToken := env.token(t, "host-1")

	resp := env.do(t, http.MethodGet, "/v1/rooms/catalog", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var listing struct {
		Items []map[string]any `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Items) == 0 {
		t.Fatal("catalog returned no items")
	}

	// No credits yet, so buying is rejected.
	resp = env.do(t, http.MethodPost, "/v1/rooms/items", hostToken, map[string]any{"item_id": "lamp_desk"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("broke purchase status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	var failure errorResponse
	decodeBody(t, resp, &failure)
	if failure.Error.Code != "CREDITS_INSUFFICIENT" {
		t.Fatalf("error code = %q, want %q", failure.Error.Code, "CREDITS_INSUFFICIENT")
	}

	// Earn credits by completing a session, then buy and place.
	sessionID := env.schedule(t, hostToken, time.Minute)
	env.clock.Advance(time.Minute + domain.TotalDuration)
	resp = env.do(t, http.MethodPost, "/v1/sessions/"+sessionID+"/complete", hostToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/v1/rooms/items", hostToken, map[string]any{"item_id": "lamp_desk"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("purchase status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = env.do(t, http.MethodPost, "/v1/rooms/placements", hostToken, map[string]any{
		"item_id": "lamp_desk", "x": 3, "y": 4,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("place status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = env.do(t, http.MethodGet, "/v1/rooms/layout", hostToken, nil)
	var layout struct {
		OwnedItemIDs []string         `json:"owned_item_ids"`
		Placements   []map[string]any `json:"placements"`
	}
	decodeBody(t, resp, &layout)
	if len(layout.OwnedItemIDs) != 1 || layout.OwnedItemIDs[0] != "lamp_desk" {
		t.Fatalf("owned = %v, want [lamp_desk]", layout.OwnedItemIDs)
	}
	if len(layout.Placements) != 1 {
		t.Fatalf("placements = %v, want one entry", layout.Placements)
	}

	resp = env.do(t, http.MethodDelete, "/v1/rooms/placements/lamp_desk", hostToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove placement status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}
