package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ytchou/focus-squad/internal/session/clock"
	sessionservice "github.com/ytchou/focus-squad/internal/session/service"
)

// clockManager runs one timeline runner per tracked session and feeds
// phase boundary crossings back into the session service.
type clockManager struct {
	mu       sync.Mutex
	runners  map[string]*clock.Runner
	sessions *sessionservice.Service
	ctx      context.Context
	tick     time.Duration
	closed   bool
}

var _ sessionservice.ClockTracker = (*clockManager)(nil)

func newClockManager(ctx context.Context, tick time.Duration) *clockManager {
	if ctx == nil {
		ctx = context.Background()
	}
	if tick <= 0 {
		tick = clock.DefaultTickInterval
	}
	return &clockManager{
		runners: make(map[string]*clock.Runner),
		ctx:     ctx,
		tick:    tick,
	}
}

// bind wires the session service the manager reports into. The service
// and the manager reference each other, so binding happens after both
// are constructed.
func (m *clockManager) bind(sessions *sessionservice.Service) {
	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
}

func (m *clockManager) Track(sessionID string, startsAt time.Time) {
	m.mu.Lock()
	if m.closed || m.runners[sessionID] != nil {
		m.mu.Unlock()
		return
	}
	runner := clock.New(sessionID, startsAt, clock.Config{TickInterval: m.tick})
	m.runners[sessionID] = runner
	m.mu.Unlock()

	events := runner.Subscribe(8)
	runner.Start()
	go m.forward(sessionID, events)
}

func (m *clockManager) Forget(sessionID string) {
	m.mu.Lock()
	runner := m.runners[sessionID]
	delete(m.runners, sessionID)
	m.mu.Unlock()
	if runner != nil {
		runner.Stop()
	}
}

// Close stops every runner. New Track calls become no-ops.
func (m *clockManager) Close() {
	m.mu.Lock()
	m.closed = true
	runners := make([]*clock.Runner, 0, len(m.runners))
	for _, runner := range m.runners {
		runners = append(runners, runner)
	}
	m.runners = make(map[string]*clock.Runner)
	m.mu.Unlock()
	for _, runner := range runners {
		runner.Stop()
	}
}

func (m *clockManager) forward(sessionID string, events <-chan clock.Event) {
	for event := range events {
		m.mu.Lock()
		sessions := m.sessions
		m.mu.Unlock()
		if sessions == nil {
			continue
		}
		if err := sessions.AdvancePhase(m.ctx, sessionID, event.From, event.To, event.At); err != nil {
			log.Printf("advance phase for session %s: %v", sessionID, err)
		}
		if event.To.IsTerminal() {
			m.Forget(sessionID)
		}
	}
}
