package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	maxRoomMessages      = 1000
	maxIdempotencyRecord = 4000
)

type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*sessionRoom
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*sessionRoom)}
}

func (h *roomHub) room(sessionID string) *sessionRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if ok {
		return room
	}

	room = newSessionRoom(sessionID)
	h.rooms[sessionID] = room
	return room
}

// release drops the room when its last peer has left so idle sessions
// do not pin message history in memory.
func (h *roomHub) release(room *sessionRoom, peer *wsPeer) {
	if room == nil || peer == nil {
		return
	}
	if !room.leave(peer) {
		return
	}
	h.mu.Lock()
	if current, ok := h.rooms[room.sessionID]; ok && current == room && current.empty() {
		delete(h.rooms, room.sessionID)
	}
	h.mu.Unlock()
}

type sessionRoom struct {
	mu               sync.Mutex
	sessionID        string
	nextSequence     int64
	messages         []chatMessage
	idempotencyBy    map[string]chatMessage
	idempotencyOrder []string
	subscribers      map[*wsPeer]struct{}
}

func newSessionRoom(sessionID string) *sessionRoom {
	return &sessionRoom{
		sessionID:     sessionID,
		idempotencyBy: make(map[string]chatMessage),
		subscribers:   make(map[*wsPeer]struct{}),
	}
}

func (r *sessionRoom) join(peer *wsPeer) int64 {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	latest := r.nextSequence
	r.mu.Unlock()
	return latest
}

func (r *sessionRoom) leave(peer *wsPeer) bool {
	r.mu.Lock()
	delete(r.subscribers, peer)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *sessionRoom) empty() bool {
	r.mu.Lock()
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *sessionRoom) appendMessage(senderID string, body string, clientMessageID string) (chatMessage, bool, []*wsPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.idempotencyBy[clientMessageID]; ok {
		return existing, true, nil
	}

	r.nextSequence++
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		senderID = "participant"
	}
	msg := chatMessage{
		MessageID:  fmt.Sprintf("msg_%d", time.Now().UnixNano()),
		SessionID:  r.sessionID,
		SequenceID: r.nextSequence,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
		Kind:       "text",
		Sender: messageSender{
			UserID: senderID,
			Name:   senderID,
		},
		Body:            body,
		ClientMessageID: clientMessageID,
	}

	r.messages = append(r.messages, msg)
	if len(r.messages) > maxRoomMessages {
		r.messages = r.messages[len(r.messages)-maxRoomMessages:]
	}

	r.idempotencyBy[clientMessageID] = msg
	r.idempotencyOrder = append(r.idempotencyOrder, clientMessageID)
	if len(r.idempotencyOrder) > maxIdempotencyRecord {
		evict := r.idempotencyOrder[0]
		r.idempotencyOrder = r.idempotencyOrder[1:]
		delete(r.idempotencyBy, evict)
	}

	subscribers := make([]*wsPeer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return msg, false, subscribers
}

func (r *sessionRoom) historyBefore(beforeSequenceID int64, limit int) []chatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]chatMessage, 0, limit)
	for _, msg := range r.messages {
		if msg.SequenceID < beforeSequenceID {
			history = append(history, msg)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
