package domain

import "time"

// EventType identifies the type of a session event.
type EventType string

const (
	// EventTypeSessionScheduled records session creation.
	EventTypeSessionScheduled EventType = "SESSION_SCHEDULED"
	// EventTypeParticipantJoined records a participant joining.
	EventTypeParticipantJoined EventType = "PARTICIPANT_JOINED"
	// EventTypeParticipantLeft records a participant leaving.
	EventTypeParticipantLeft EventType = "PARTICIPANT_LEFT"
	// EventTypePhaseAdvanced records a timeline phase transition.
	EventTypePhaseAdvanced EventType = "PHASE_ADVANCED"
	// EventTypeSessionCompleted records the end of the timeline.
	EventTypeSessionCompleted EventType = "SESSION_COMPLETED"
	// EventTypeSessionCanceled records a host cancellation.
	EventTypeSessionCanceled EventType = "SESSION_CANCELED"
)

// Event captures an immutable session-scoped event.
type Event struct {
	SessionID   string
	Seq         uint64
	Timestamp   time.Time
	Type        EventType
	UserID      string
	PayloadJSON []byte
}

// IsValid reports whether the session event type is supported.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeSessionScheduled,
		EventTypeParticipantJoined,
		EventTypeParticipantLeft,
		EventTypePhaseAdvanced,
		EventTypeSessionCompleted,
		EventTypeSessionCanceled:
		return true
	default:
		return false
	}
}
