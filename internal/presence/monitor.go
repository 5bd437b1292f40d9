package presence

import (
	"sync"
	"time"
)

// Default monitor cadences.
const (
	DefaultPollInterval = 10 * time.Second
	TypingWindow        = 3 * time.Second
)

// InputKind identifies which device produced an input signal.
type InputKind int

const (
	// InputKeyboard is a keydown. It also drives the typing indicator.
	InputKeyboard InputKind = iota
	// InputPointer is a mouse move or click.
	InputPointer
	// InputTouch is a touch start.
	InputTouch
)

// Change records one tier transition observed by the monitor.
type Change struct {
	From Tier
	To   Tier
	At   time.Time
}

// Config contains runtime options for a Monitor.
type Config struct {
	// Enabled gates the whole classifier. A disabled monitor reports
	// active/visible unconditionally and ignores every signal, so the
	// rest of the product never blocks on this feature.
	Enabled bool
	// InputConsent permits input signals to refresh the last-signal
	// timestamp. Visibility signals work regardless.
	InputConsent bool
	// PollInterval is the classification cadence.
	PollInterval time.Duration
	// OnChange is invoked when consecutive polls classify different
	// tiers. It is never invoked twice for the same tier.
	OnChange func(Change)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Monitor tracks one participant's signals and classifies a presence tier
// on a fixed cadence. The only state it keeps between polls is the instant
// the last positive signal was observed.
type Monitor struct {
	mu           sync.Mutex
	enabled      bool
	inputConsent bool
	pollInterval time.Duration
	onChange     func(Change)
	now          func() time.Time

	visible      bool
	pipActive    bool
	lastSignalAt time.Time
	lastKeyAt    time.Time
	lastTier     Tier

	stopCh  chan struct{}
	running bool
}

// NewMonitor creates a monitor. The participant starts visible with a fresh
// signal, so the first classification is active.
func NewMonitor(config Config) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	monitor := &Monitor{
		enabled:      config.Enabled,
		inputConsent: config.InputConsent,
		pollInterval: config.PollInterval,
		onChange:     config.OnChange,
		now:          config.Now,
		visible:      true,
	}
	monitor.lastSignalAt = monitor.now()
	monitor.lastTier = TierActive
	return monitor
}

// Start launches the polling loop. It is a no-op when the monitor is
// disabled or already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if !m.enabled || m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	interval := m.pollInterval
	m.mu.Unlock()

	go m.run(stopCh, interval)
}

// Stop terminates the polling loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()
}

func (m *Monitor) run(stopCh chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}

// SetVisible records a page visibility transition. Gaining visibility is a
// positive signal; losing it only flips the flag.
func (m *Monitor) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	if visible && !m.visible {
		m.lastSignalAt = m.now()
	}
	m.visible = visible
}

// SetPictureInPicture records the picture-in-picture override. An active
// floating player counts as visible even when the page itself is hidden.
func (m *Monitor) SetPictureInPicture(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	m.pipActive = active
}

// SetInputConsent grants or revokes permission to observe input signals.
// Revoking only silences the input path; visibility signals still count.
func (m *Monitor) SetInputConsent(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputConsent = granted
}

// InputSignal records an input event. Ignored without consent or when the
// monitor is disabled. Keyboard input additionally drives the typing
// indicator.
func (m *Monitor) InputSignal(kind InputKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || !m.inputConsent {
		return
	}
	now := m.now()
	m.lastSignalAt = now
	if kind == InputKeyboard {
		m.lastKeyAt = now
	}
}

// Typing reports whether a keydown was observed within the typing window.
// Each keystroke restarts the window.
func (m *Monitor) Typing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || !m.inputConsent || m.lastKeyAt.IsZero() {
		return false
	}
	return m.now().Sub(m.lastKeyAt) < TypingWindow
}

// Visible reports the effective visibility, including the picture-in-picture
// override. A disabled monitor is always visible.
func (m *Monitor) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibleLocked()
}

func (m *Monitor) visibleLocked() bool {
	if !m.enabled {
		return true
	}
	return m.visible || m.pipActive
}

// Tier classifies the current presence tier without recording a poll.
// A disabled monitor is always active.
func (m *Monitor) Tier() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifyLocked()
}

func (m *Monitor) classifyLocked() Tier {
	if !m.enabled {
		return TierActive
	}
	return Classify(m.visibleLocked(), m.now().Sub(m.lastSignalAt))
}

// Poll performs one classification step and reports the resulting tier.
// The change callback fires only when the tier differs from the previous
// poll's result.
func (m *Monitor) Poll() Tier {
	m.mu.Lock()
	tier := m.classifyLocked()
	previous := m.lastTier
	m.lastTier = tier
	onChange := m.onChange
	at := m.now()
	m.mu.Unlock()

	if tier != previous && onChange != nil {
		onChange(Change{From: previous, To: tier, At: at})
	}
	return tier
}
