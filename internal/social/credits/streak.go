package credits

import "time"

// Streak tracks consecutive days with at least one completed session.
// LastDay is a UTC midnight-truncated date.
type Streak struct {
	UserID  string
	Current int
	Best    int
	LastDay time.Time
}

// Advance applies one session completion on the given instant. Multiple
// completions on the same UTC day leave the streak unchanged; the day
// after extends it; any gap resets to one.
func Advance(streak Streak, completedAt time.Time) Streak {
	day := completedAt.UTC().Truncate(24 * time.Hour)
	switch {
	case streak.Current == 0 || streak.LastDay.IsZero():
		streak.Current = 1
	case day.Equal(streak.LastDay):
		return streak
	case day.Equal(streak.LastDay.Add(24 * time.Hour)):
		streak.Current++
	default:
		streak.Current = 1
	}
	streak.LastDay = day
	if streak.Current > streak.Best {
		streak.Best = streak.Current
	}
	return streak
}
