// Package selector resolves a logical page control ("the provider login
// button") from an ordered list of interchangeable candidate selectors.
package selector

import (
	"errors"
	"fmt"
	"time"

	"github.com/Nehilsa2/console_keepalive/browser"
)

var (
	// ErrNotFound means no candidate matched any element.
	ErrNotFound = errors.New("no candidate present")
	// ErrNotVisible means the first present candidate did not become
	// visible in time. Later candidates are not tried.
	ErrNotVisible = errors.New("candidate present but not visible")
)

// Set is an immutable, ordered list of candidates for one control. Order
// is priority: the first structurally present candidate wins.
type Set struct {
	name       string
	candidates []browser.Selector
}

// New creates a Set. The candidate slice is copied.
func New(name string, candidates ...browser.Selector) Set {
	return Set{name: name, candidates: append([]browser.Selector(nil), candidates...)}
}

func (s Set) Name() string { return s.name }

func (s Set) Len() int { return len(s.candidates) }

// Candidates returns a copy of the candidate list.
func (s Set) Candidates() []browser.Selector {
	return append([]browser.Selector(nil), s.candidates...)
}

// Match is a resolved control.
type Match struct {
	Element  browser.Element
	Index    int
	Selector browser.Selector
}

// Fallback reports whether a lower-priority candidate matched.
func (m Match) Fallback() bool {
	return m.Index > 0
}

// Resolve returns the first element of the first present candidate once it
// is visible. A query error counts as "not present". When the winning
// candidate stays hidden for visibility, Resolve returns ErrNotVisible with
// that candidate's index in the Match and does not fall back further.
func (s Set) Resolve(page browser.Page, visibility time.Duration) (Match, error) {
	for i, sel := range s.candidates {
		els, err := page.Query(sel)
		if err != nil || len(els) == 0 {
			continue
		}

		m := Match{Element: els[0], Index: i, Selector: sel}
		if err := els[0].WaitVisible(visibility); err != nil {
			return m, fmt.Errorf("%s: candidate %d (%s): %w: %v", s.name, i, sel, ErrNotVisible, err)
		}
		return m, nil
	}
	return Match{Index: -1}, fmt.Errorf("%s: %w among %d candidates", s.name, ErrNotFound, len(s.candidates))
}

// Present returns the index of the first candidate with at least one
// element, without waiting for visibility.
func (s Set) Present(page browser.Page) (int, bool) {
	for i, sel := range s.candidates {
		els, err := page.Query(sel)
		if err == nil && len(els) > 0 {
			return i, true
		}
	}
	return -1, false
}

// WaitPresent polls Present until a candidate shows up or timeout elapses.
// It always checks at least once.
func (s Set) WaitPresent(page browser.Page, timeout time.Duration) (int, error) {
	const poll = 100 * time.Millisecond

	deadline := time.Now().Add(timeout)
	for {
		if i, ok := s.Present(page); ok {
			return i, nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return -1, fmt.Errorf("%s: %w among %d candidates after %v", s.name, ErrNotFound, len(s.candidates), timeout)
		}
		time.Sleep(min(poll, left))
	}
}
