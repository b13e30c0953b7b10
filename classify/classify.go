// Package classify decides whether a run ended inside the console.
//
// Four independent signal families are checked against the final page and
// every one is evaluated so the evidence is complete. Any fired signal
// means success: the console UI changes often, so a false positive is
// cheaper than a false negative.
package classify

import (
	"fmt"
	"strings"
)

// Family groups related signals.
type Family string

const (
	FamilyText      Family = "text"
	FamilyURL       Family = "url"
	FamilyNotLogin  Family = "not_login"
	FamilyStructure Family = "structure"
)

// Signal is one fired check with a human-readable label.
type Signal struct {
	Family Family `json:"family"`
	Label  string `json:"label"`
}

func (s Signal) String() string {
	return s.Label
}

// Rules configures the classifier.
type Rules struct {
	// Phrases whose presence (case-insensitive) suggests the console.
	Phrases []string
	// ConsoleURLMarkers are substrings of console URLs.
	ConsoleURLMarkers []string
	// LoginURLMarkers are substrings of login/provider URLs.
	LoginURLMarkers []string
}

// DefaultRules returns the markers of the ClawCloud console behind GitHub.
func DefaultRules() Rules {
	return Rules{
		Phrases:           []string{"App Launchpad", "Devbox", "Dashboard", "Welcome", "Console", "ClawCloud", "Projects"},
		ConsoleURLMarkers: []string{"private-team", "console", "dashboard"},
		LoginURLMarkers:   []string{"github.com", "login", "signin"},
	}
}

// Snapshot is the final page state the classifier reads.
type Snapshot struct {
	URL     string
	Content string
	// Structure names the navigation-shell selector found on the page, or
	// is empty when none was.
	Structure string
}

// Result is the verdict with its evidence.
type Result struct {
	Success  bool     `json:"success"`
	Evidence []Signal `json:"evidence"`
}

// Labels returns the evidence labels in order.
func (r Result) Labels() []string {
	out := make([]string, len(r.Evidence))
	for i, s := range r.Evidence {
		out[i] = s.Label
	}
	return out
}

// Classifier applies Rules to snapshots. It holds no state.
type Classifier struct {
	rules Rules
}

// New creates a Classifier.
func New(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify evaluates every family. The negative URL check only runs when
// the positive one did not fire.
func (c *Classifier) Classify(snap Snapshot) Result {
	var evidence []Signal

	evidence = append(evidence, c.textSignals(snap.Content)...)

	if s, ok := c.consoleURL(snap.URL); ok {
		evidence = append(evidence, s)
	} else if s, ok := c.notLoginURL(snap.URL); ok {
		evidence = append(evidence, s)
	}

	if snap.Structure != "" {
		evidence = append(evidence, Signal{
			Family: FamilyStructure,
			Label:  fmt.Sprintf("navigation element present (%s)", snap.Structure),
		})
	}

	return Result{Success: len(evidence) > 0, Evidence: evidence}
}

func (c *Classifier) textSignals(content string) []Signal {
	lower := strings.ToLower(content)

	var out []Signal
	for _, phrase := range c.rules.Phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			out = append(out, Signal{Family: FamilyText, Label: "found text: " + phrase})
		}
	}
	return out
}

func (c *Classifier) consoleURL(url string) (Signal, bool) {
	for _, marker := range c.rules.ConsoleURLMarkers {
		if marker != "" && strings.Contains(url, marker) {
			return Signal{Family: FamilyURL, Label: "URL contains console marker: " + marker}, true
		}
	}
	return Signal{}, false
}

func (c *Classifier) notLoginURL(url string) (Signal, bool) {
	if url == "" {
		return Signal{}, false
	}
	for _, marker := range c.rules.LoginURLMarkers {
		if marker != "" && strings.Contains(url, marker) {
			return Signal{}, false
		}
	}
	return Signal{Family: FamilyNotLogin, Label: "not on a login or provider page"}, true
}
