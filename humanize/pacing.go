package humanize

import (
	"math/rand"
	"time"
)

// Range is an inclusive [Min, Max] bound for a randomized delay.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Sample draws a uniform duration from r. A degenerate range yields Min.
func (r Range) Sample(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)+1))
}

// upper draws from the upper half of r.
func (r Range) upper(rng *rand.Rand) time.Duration {
	mid := r.Min + (r.Max-r.Min)/2
	return Range{Min: mid, Max: r.Max}.Sample(rng)
}

// Pacing holds the delay bounds for every action the Actor performs.
type Pacing struct {
	// Pause around hovers and clicks
	Action Range
	// Pause after each keystroke
	Keystroke Range
}

// DefaultPacing mirrors a user who knows the login form by heart.
func DefaultPacing() Pacing {
	return Pacing{
		Action:    Range{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond},
		Keystroke: Range{Min: 40 * time.Millisecond, Max: 120 * time.Millisecond},
	}
}
