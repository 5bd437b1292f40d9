// Package presence estimates how engaged a participant is from visibility
// and input-recency signals. No media or biometric content is inspected.
package presence

import "time"

// Tier is a coarse engagement estimate, ordered by degree of absence.
type Tier int

const (
	// TierActive indicates a recent signal on a visible page.
	TierActive Tier = iota
	// TierGrace indicates the page was recently hidden but the user is
	// still presumed present.
	TierGrace
	// TierAway indicates the user has been signal-free past the grace
	// window.
	TierAway
	// TierGhosting indicates the user has disengaged entirely.
	TierGhosting
)

// Classification thresholds.
const (
	// GraceThreshold is the window after losing a signal during which the
	// user is still presumed present.
	GraceThreshold = 120 * time.Second
	// AwayThreshold is the window after which a silent user is considered
	// to be ghosting.
	AwayThreshold = 300 * time.Second
)

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierActive:
		return "active"
	case TierGrace:
		return "grace"
	case TierAway:
		return "away"
	case TierGhosting:
		return "ghosting"
	default:
		return "unknown"
	}
}

// TierFromString parses a wire name back into a tier.
// Unknown names classify as ghosting so a corrupt record never reads as
// more present than it was.
func TierFromString(name string) Tier {
	switch name {
	case "active":
		return TierActive
	case "grace":
		return TierGrace
	case "away":
		return TierAway
	default:
		return TierGhosting
	}
}

// Classify derives a tier from page visibility and time since the last
// positive signal. Negative elapsed values clamp to zero.
func Classify(visible bool, sinceSignal time.Duration) Tier {
	if sinceSignal < 0 {
		sinceSignal = 0
	}
	switch {
	case visible && sinceSignal < GraceThreshold:
		return TierActive
	case !visible && sinceSignal < GraceThreshold:
		return TierGrace
	case sinceSignal < AwayThreshold:
		return TierAway
	default:
		return TierGhosting
	}
}
