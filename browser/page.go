// Package browser is the narrow view of a live browser page that the login
// steps drive. The rod-backed implementation lives in rod.go; tests use the
// in-memory page from browsertest.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tells the page how to evaluate a selector expression.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

func (k Kind) String() string {
	if k == KindXPath {
		return "xpath"
	}
	return "css"
}

// Selector is one concrete way of locating an element.
type Selector struct {
	Kind Kind
	Expr string
}

func (s Selector) String() string {
	return s.Kind.String() + ":" + s.Expr
}

// CSS builds a CSS selector.
func CSS(expr string) Selector {
	return Selector{Kind: KindCSS, Expr: expr}
}

// XPath builds an XPath selector.
func XPath(expr string) Selector {
	return Selector{Kind: KindXPath, Expr: expr}
}

// Text matches tag elements whose text contains text. Use "*" for any tag;
// in that case only body elements owning a matching text node are
// returned, so the innermost element wins instead of <html>, and <title>
// or inline scripts never do.
func Text(tag, text string) Selector {
	if tag == "*" {
		return XPath(fmt.Sprintf("//body//*[not(self::script or self::style)][text()[contains(., %s)]]", xpathLiteral(text)))
	}
	return XPath(fmt.Sprintf("//%s[contains(., %s)]", tag, xpathLiteral(text)))
}

// TextWithin is Text restricted to descendants of scope elements.
func TextWithin(scope, tag, text string) Selector {
	return XPath(fmt.Sprintf("//%s//%s[contains(., %s)]", scope, tag, xpathLiteral(text)))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Page is the single live page owned by a run.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(url string, timeout time.Duration) error
	Reload(timeout time.Duration) error
	WaitLoad(timeout time.Duration) error
	// WaitIdle waits for the page to go quiet. Best effort.
	WaitIdle(timeout time.Duration) error
	URL() string
	Title() string
	HTML() (string, error)
	// Query returns every element currently matching sel without waiting.
	Query(sel Selector) ([]Element, error)
	Screenshot(path string) error
}

// Element is a handle on a DOM node.
type Element interface {
	WaitVisible(timeout time.Duration) error
	ScrollIntoView() error
	Hover() error
	Click() error
	// Clear empties an input.
	Clear() error
	// Type appends text at the caret.
	Type(text string) error
	Text() (string, error)
}

// ErrURLTimeout is returned by WaitURL when the deadline passes.
var ErrURLTimeout = errors.New("timed out waiting for url")

// WaitURL polls the page URL until match reports true or timeout elapses.
func WaitURL(p Page, match func(string) bool, timeout time.Duration) (string, error) {
	const poll = 250 * time.Millisecond

	deadline := time.Now().Add(timeout)
	for {
		current := p.URL()
		if match(current) {
			return current, nil
		}
		if !time.Now().Before(deadline) {
			return current, fmt.Errorf("%w after %v (at %s)", ErrURLTimeout, timeout, current)
		}
		wait := poll
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		time.Sleep(wait)
	}
}
