package domain

import (
	"testing"
	"time"
)

var phaseTestStart = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func atElapsed(d time.Duration) PhaseInfo {
	return PhaseAt(phaseTestStart, phaseTestStart.Add(d))
}

func TestPhaseAtBeforeStart(t *testing.T) {
	info := PhaseAt(phaseTestStart, phaseTestStart.Add(-90*time.Second))
	if info.Phase != PhaseIdle {
		t.Fatalf("phase = %s, want idle", info.Phase)
	}
	if info.TimeRemaining != 90*time.Second {
		t.Fatalf("time remaining = %s, want 90s", info.TimeRemaining)
	}
	if info.TotalTimeRemaining != 90*time.Second+TotalDuration {
		t.Fatalf("total remaining = %s, want %s", info.TotalTimeRemaining, 90*time.Second+TotalDuration)
	}
	if info.Progress != 0 {
		t.Fatalf("progress = %v, want 0", info.Progress)
	}
	if info.Elapsed != 0 {
		t.Fatalf("elapsed = %s, want 0", info.Elapsed)
	}
}

func TestPhaseAtStartInstant(t *testing.T) {
	info := atElapsed(0)
	if info.Phase != PhaseSetup {
		t.Fatalf("phase = %s, want setup", info.Phase)
	}
	if info.TimeRemaining != 180*time.Second {
		t.Fatalf("time remaining = %s, want 180s", info.TimeRemaining)
	}
}

func TestPhaseBoundaryBelongsToNextPhase(t *testing.T) {
	cases := []struct {
		elapsed       time.Duration
		wantPhase     Phase
		wantRemaining time.Duration
	}{
		{0, PhaseSetup, 180 * time.Second},
		{179 * time.Second, PhaseSetup, time.Second},
		{180 * time.Second, PhaseWork1, 1500 * time.Second},
		{1679 * time.Second, PhaseWork1, time.Second},
		{1680 * time.Second, PhaseBreak, 120 * time.Second},
		{1800 * time.Second, PhaseWork2, 1200 * time.Second},
		{3000 * time.Second, PhaseSocial, 300 * time.Second},
		{3299 * time.Second, PhaseSocial, time.Second},
	}
	for _, tc := range cases {
		info := atElapsed(tc.elapsed)
		if info.Phase != tc.wantPhase {
			t.Fatalf("elapsed %s: phase = %s, want %s", tc.elapsed, info.Phase, tc.wantPhase)
		}
		if info.TimeRemaining != tc.wantRemaining {
			t.Fatalf("elapsed %s: remaining = %s, want %s", tc.elapsed, info.TimeRemaining, tc.wantRemaining)
		}
	}
}

func TestPhaseAtCompletion(t *testing.T) {
	for _, elapsed := range []time.Duration{3300 * time.Second, 3301 * time.Second, 24 * time.Hour} {
		info := atElapsed(elapsed)
		if info.Phase != PhaseCompleted {
			t.Fatalf("elapsed %s: phase = %s, want completed", elapsed, info.Phase)
		}
		if info.TimeRemaining != 0 {
			t.Fatalf("elapsed %s: remaining = %s, want 0", elapsed, info.TimeRemaining)
		}
		if info.TotalTimeRemaining != 0 {
			t.Fatalf("elapsed %s: total remaining = %s, want 0", elapsed, info.TotalTimeRemaining)
		}
		if info.Progress != 1 {
			t.Fatalf("elapsed %s: progress = %v, want 1", elapsed, info.Progress)
		}
	}
}

func TestPhaseRemainingSumsToPhaseDuration(t *testing.T) {
	boundaries := []struct {
		start    time.Duration
		duration time.Duration
	}{
		{0, SetupDuration},
		{SetupDuration, Work1Duration},
		{SetupDuration + Work1Duration, BreakDuration},
		{SetupDuration + Work1Duration + BreakDuration, Work2Duration},
		{SetupDuration + Work1Duration + BreakDuration + Work2Duration, SocialDuration},
	}
	for elapsed := time.Duration(0); elapsed < TotalDuration; elapsed += 7 * time.Second {
		info := atElapsed(elapsed)
		if info.Phase == PhaseIdle || info.Phase == PhaseCompleted {
			t.Fatalf("elapsed %s: unexpected terminal phase %s", elapsed, info.Phase)
		}
		seg := boundaries[int(info.Phase)-int(PhaseSetup)]
		if got := info.TimeRemaining + (elapsed - seg.start); got != seg.duration {
			t.Fatalf("elapsed %s: remaining+sincePhaseStart = %s, want %s", elapsed, got, seg.duration)
		}
	}
}

func TestTotalTimeRemainingMonotonic(t *testing.T) {
	previous := atElapsed(0).TotalTimeRemaining
	for elapsed := 13 * time.Second; elapsed < TotalDuration+10*time.Minute; elapsed += 13 * time.Second {
		current := atElapsed(elapsed).TotalTimeRemaining
		if current > previous {
			t.Fatalf("elapsed %s: total remaining grew from %s to %s", elapsed, previous, current)
		}
		previous = current
	}
}

func TestPhaseAtFractionalElapsed(t *testing.T) {
	info := atElapsed(180*time.Second - time.Nanosecond)
	if info.Phase != PhaseSetup {
		t.Fatalf("phase = %s, want setup just before the boundary", info.Phase)
	}
	info = atElapsed(180*time.Second + 500*time.Millisecond)
	if info.Phase != PhaseWork1 {
		t.Fatalf("phase = %s, want work1 just after the boundary", info.Phase)
	}
	if info.Progress <= 0 || info.Progress >= 1 {
		t.Fatalf("progress = %v, want a fraction inside (0, 1)", info.Progress)
	}
}

func TestPhaseAtIsReferentiallyTransparent(t *testing.T) {
	now := phaseTestStart.Add(42 * time.Minute)
	first := PhaseAt(phaseTestStart, now)
	second := PhaseAt(phaseTestStart, now)
	if first != second {
		t.Fatalf("repeated calls diverged: %+v vs %+v", first, second)
	}
}

func TestPhaseAtStringEncodedInstant(t *testing.T) {
	now := phaseTestStart.Add(1700 * time.Second)
	encodedStart, err := time.Parse(time.RFC3339Nano, phaseTestStart.Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	encodedNow, err := time.Parse(time.RFC3339Nano, now.Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("parse now: %v", err)
	}
	if got, want := PhaseAt(encodedStart, encodedNow), PhaseAt(phaseTestStart, now); got != want {
		t.Fatalf("string-encoded instants: %+v, want %+v", got, want)
	}
}

func TestPhaseString(t *testing.T) {
	want := map[Phase]string{
		PhaseIdle:      "idle",
		PhaseSetup:     "setup",
		PhaseWork1:     "work1",
		PhaseBreak:     "break",
		PhaseWork2:     "work2",
		PhaseSocial:    "social",
		PhaseCompleted: "completed",
	}
	for phase, name := range want {
		if phase.String() != name {
			t.Fatalf("phase %d String() = %q, want %q", phase, phase.String(), name)
		}
	}
	if !PhaseCompleted.IsTerminal() || PhaseSocial.IsTerminal() {
		t.Fatal("IsTerminal misclassified a phase")
	}
}
