package humanize

import (
	"fmt"
	"math/rand"
	"time"
	"unicode"

	"github.com/Nehilsa2/console_keepalive/browser"
)

// TypeHumanlike clears el and types text one character at a time, pausing
// a fresh random keystroke delay after every character.
//
// Sites that fingerprint bots look at keystroke cadence: pasting the whole
// value produces a single input event in zero time.
func (a *Actor) TypeHumanlike(el browser.Element, text string) error {
	if err := el.Clear(); err != nil {
		return fmt.Errorf("failed to clear field: %w", err)
	}
	a.sleep(a.pacing.Action.Sample(a.rng) / 2)

	for i, char := range []rune(text) {
		if err := el.Type(string(char)); err != nil {
			return fmt.Errorf("failed to type character %d: %w", i, err)
		}
		a.sleep(keystrokeDelay(char, i, a.pacing.Keystroke, a.rng))
	}
	return nil
}

// keystrokeDelay stays inside r. The first key, shifted letters, digits and
// symbols are drawn from the slower half of the range (finding the key,
// holding shift).
func keystrokeDelay(char rune, position int, r Range, rng *rand.Rand) time.Duration {
	slow := position == 0 ||
		unicode.IsUpper(char) ||
		unicode.IsDigit(char) ||
		unicode.IsPunct(char) ||
		unicode.IsSymbol(char)

	if slow {
		return r.upper(rng)
	}
	return r.Sample(rng)
}
