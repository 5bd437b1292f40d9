package domain

import "time"

// Phase describes a segment of the fixed session timeline.
type Phase int

const (
	// PhaseIdle indicates the session has not started yet.
	PhaseIdle Phase = iota
	// PhaseSetup is the arrival window before the first work block.
	PhaseSetup
	// PhaseWork1 is the first focused work block.
	PhaseWork1
	// PhaseBreak is the mid-session break.
	PhaseBreak
	// PhaseWork2 is the second focused work block.
	PhaseWork2
	// PhaseSocial is the wind-down chat window.
	PhaseSocial
	// PhaseCompleted indicates the timeline has fully elapsed.
	PhaseCompleted
)

// Timeline durations. The sequence and durations are fixed product
// constants, not runtime configuration.
const (
	SetupDuration  = 180 * time.Second
	Work1Duration  = 1500 * time.Second
	BreakDuration  = 120 * time.Second
	Work2Duration  = 1200 * time.Second
	SocialDuration = 300 * time.Second

	// TotalDuration is the full 55-minute session length.
	TotalDuration = SetupDuration + Work1Duration + BreakDuration + Work2Duration + SocialDuration
)

type timelineSegment struct {
	phase    Phase
	duration time.Duration
}

var timeline = []timelineSegment{
	{PhaseSetup, SetupDuration},
	{PhaseWork1, Work1Duration},
	{PhaseBreak, BreakDuration},
	{PhaseWork2, Work2Duration},
	{PhaseSocial, SocialDuration},
}

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSetup:
		return "setup"
	case PhaseWork1:
		return "work1"
	case PhaseBreak:
		return "break"
	case PhaseWork2:
		return "work2"
	case PhaseSocial:
		return "social"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the phase ends the timeline.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted
}

// PhaseInfo is the derived timeline position at a single instant.
type PhaseInfo struct {
	Phase              Phase
	Elapsed            time.Duration
	TimeRemaining      time.Duration
	TotalTimeRemaining time.Duration
	Progress           float64
}

// PhaseAt computes the timeline position for a session that starts at start,
// observed at now. It is a pure function: calling it repeatedly with
// different instants reconstructs the whole timeline.
//
// A phase boundary instant belongs to the phase that begins there: at
// exactly 180s elapsed the session is in work1, not setup.
func PhaseAt(start, now time.Time) PhaseInfo {
	if now.Before(start) {
		untilStart := start.Sub(now)
		return PhaseInfo{
			Phase:              PhaseIdle,
			Elapsed:            0,
			TimeRemaining:      untilStart,
			TotalTimeRemaining: untilStart + TotalDuration,
			Progress:           0,
		}
	}

	elapsed := now.Sub(start)
	boundary := time.Duration(0)
	for _, segment := range timeline {
		end := boundary + segment.duration
		if elapsed < end {
			return PhaseInfo{
				Phase:              segment.phase,
				Elapsed:            elapsed,
				TimeRemaining:      end - elapsed,
				TotalTimeRemaining: TotalDuration - elapsed,
				Progress:           clampFraction(float64(elapsed-boundary) / float64(segment.duration)),
			}
		}
		boundary = end
	}

	return PhaseInfo{
		Phase:              PhaseCompleted,
		Elapsed:            elapsed,
		TimeRemaining:      0,
		TotalTimeRemaining: 0,
		Progress:           1,
	}
}

func clampFraction(fraction float64) float64 {
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}
