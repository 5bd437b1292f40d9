// Package clock drives phase transitions for a live focus session.
//
// A Runner polls the pure phase computation on a fixed cadence and fans
// out an event whenever the phase crossed a boundary since the previous
// tick. Subscribers receive events over buffered channels; a slow
// subscriber misses events rather than stalling the runner.
package clock

import (
	"sync"
	"time"

	"github.com/ytchou/focus-squad/internal/session/domain"
)

// DefaultTickInterval is how often the runner re-evaluates the phase.
const DefaultTickInterval = time.Second

// Event reports a phase boundary crossing for a session.
type Event struct {
	SessionID string
	From      domain.Phase
	To        domain.Phase
	Info      domain.PhaseInfo
	At        time.Time
}

// Config contains runtime options for Runner.
type Config struct {
	TickInterval time.Duration
	Now          func() time.Time
}

// Runner tracks one session's phase over wall-clock time.
type Runner struct {
	mu        sync.Mutex
	sessionID string
	startsAt  time.Time
	options   Config
	lastPhase domain.Phase
	events    []chan Event
	stopCh    chan struct{}
	running   bool
}

// New creates a Runner for the session identified by sessionID that
// started (or will start) at startsAt.
func New(sessionID string, startsAt time.Time, options Config) *Runner {
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	runner := &Runner{
		sessionID: sessionID,
		startsAt:  startsAt,
		options:   options,
		stopCh:    make(chan struct{}),
	}
	runner.lastPhase = domain.PhaseAt(startsAt, options.Now()).Phase
	return runner
}

// Subscribe registers a new observer channel.
func (runner *Runner) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	runner.mu.Lock()
	runner.events = append(runner.events, ch)
	runner.mu.Unlock()
	return ch
}

// Start launches the ticking loop. Calling Start on a running runner is
// a no-op.
func (runner *Runner) Start() {
	runner.mu.Lock()
	if runner.running {
		runner.mu.Unlock()
		return
	}
	runner.running = true
	runner.mu.Unlock()

	go runner.run()
}

// Stop terminates the ticking loop and closes observer channels.
func (runner *Runner) Stop() {
	runner.mu.Lock()
	if !runner.running {
		runner.mu.Unlock()
		return
	}
	close(runner.stopCh)
	runner.running = false
	events := runner.events
	runner.events = nil
	runner.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}

// Phase returns the phase as of the most recent evaluation.
func (runner *Runner) Phase() domain.Phase {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	return runner.lastPhase
}

// Tick re-evaluates the phase immediately. It exists for callers that
// drive the runner from their own clock; the internal loop calls it on
// every ticker fire.
func (runner *Runner) Tick() {
	runner.mu.Lock()
	if !runner.running && runner.stopClosedLocked() {
		runner.mu.Unlock()
		return
	}
	now := runner.options.Now()
	info := domain.PhaseAt(runner.startsAt, now)
	previous := runner.lastPhase
	if info.Phase == previous {
		runner.mu.Unlock()
		return
	}
	runner.lastPhase = info.Phase
	runner.emitLocked(Event{
		SessionID: runner.sessionID,
		From:      previous,
		To:        info.Phase,
		Info:      info,
		At:        now,
	})
	runner.mu.Unlock()
}

func (runner *Runner) run() {
	ticker := time.NewTicker(runner.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-runner.stopCh:
			return
		case <-ticker.C:
			runner.Tick()
			if runner.Phase().IsTerminal() {
				runner.Stop()
				return
			}
		}
	}
}

func (runner *Runner) stopClosedLocked() bool {
	select {
	case <-runner.stopCh:
		return true
	default:
		return false
	}
}

func (runner *Runner) emitLocked(event Event) {
	events := append([]chan Event(nil), runner.events...)
	for _, ch := range events {
		select {
		case ch <- event:
		default:
		}
	}
}
