// Package humanize performs page actions at a human pace: hover before
// click, randomized pauses between actions, one keystroke at a time.
package humanize

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nehilsa2/console_keepalive/browser"
)

// Actor performs paced actions on page elements.
type Actor struct {
	pacing Pacing
	rng    *rand.Rand
	sleep  func(time.Duration)
	logger zerolog.Logger
}

// Option customizes an Actor.
type Option func(*Actor)

// WithSleeper replaces time.Sleep, mainly for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(a *Actor) { a.sleep = sleep }
}

// WithRand sets the random source.
func WithRand(rng *rand.Rand) Option {
	return func(a *Actor) { a.rng = rng }
}

// NewActor creates an Actor with the given pacing.
func NewActor(pacing Pacing, logger zerolog.Logger, opts ...Option) *Actor {
	a := &Actor{
		pacing: pacing,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  time.Sleep,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Pause waits one action delay.
func (a *Actor) Pause() {
	a.sleep(a.pacing.Action.Sample(a.rng))
}

// HoverThenClick scrolls el into view, hovers it, waits, clicks and waits
// again.
func (a *Actor) HoverThenClick(el browser.Element) error {
	if err := el.ScrollIntoView(); err != nil {
		a.logger.Debug().Err(err).Msg("scroll into view failed, clicking anyway")
	}

	if err := el.Hover(); err != nil {
		a.logger.Debug().Err(err).Msg("hover failed, clicking anyway")
	}
	a.Pause()

	if err := el.Click(); err != nil {
		return fmt.Errorf("failed to click: %w", err)
	}
	a.Pause()
	return nil
}
