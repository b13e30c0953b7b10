// Package browsertest provides an in-memory browser.Page for tests.
// Elements are registered by selector expression; clicks can run callbacks
// that rewrite the page to simulate navigation.
package browsertest

import (
	"errors"
	"strings"
	"time"

	"github.com/Nehilsa2/console_keepalive/browser"
)

// ErrNotVisible is returned by WaitVisible on hidden elements.
var ErrNotVisible = errors.New("element not visible")

// Element is a fake DOM node.
type Element struct {
	Hidden bool
	Label  string
	Value  string

	// Typed records each Type call in order.
	Typed  []string
	Hovers int
	Clicks int

	HoverErr error
	ClickErr error
	TypeErr  error

	// OnClick runs after a successful click.
	OnClick func()
}

func (e *Element) WaitVisible(time.Duration) error {
	if e.Hidden {
		return ErrNotVisible
	}
	return nil
}

func (e *Element) ScrollIntoView() error { return nil }

func (e *Element) Hover() error {
	if e.HoverErr != nil {
		return e.HoverErr
	}
	e.Hovers++
	return nil
}

func (e *Element) Click() error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) Clear() error {
	e.Value = ""
	return nil
}

func (e *Element) Type(text string) error {
	if e.TypeErr != nil {
		return e.TypeErr
	}
	e.Typed = append(e.Typed, text)
	e.Value += text
	return nil
}

func (e *Element) Text() (string, error) {
	return e.Label, nil
}

// Page is a fake browser.Page.
type Page struct {
	CurrentURL string
	PageTitle  string
	Content    string

	// NavigateErrs and ReloadErrs are consumed one per call.
	NavigateErrs []error
	ReloadErrs   []error
	WaitLoadErr  error

	// OnNavigate runs after a successful Navigate, e.g. to swap elements.
	OnNavigate func(p *Page, url string)

	// ParseDelay hides every element from Query for this long after the
	// URL changes or the page reloads, like a document still being parsed.
	ParseDelay time.Duration
	// BlockingLoad makes WaitLoad wait out ParseDelay the way a real
	// load event would.
	BlockingLoad bool

	Navigations []string
	Reloads     int
	Screenshots []string
	Queries     []string

	elements map[string][]*Element
	badExprs map[string]error
	loadedAt time.Time
}

// NewPage returns an empty page at url.
func NewPage(url string) *Page {
	return &Page{
		CurrentURL: url,
		elements:   map[string][]*Element{},
		badExprs:   map[string]error{},
	}
}

// Set registers els under the selector expression expr, replacing any
// previous elements.
func (p *Page) Set(expr string, els ...*Element) *Page {
	p.elements[expr] = els
	return p
}

// Add registers a single element under expr and returns it.
func (p *Page) Add(expr string) *Element {
	el := &Element{}
	p.elements[expr] = append(p.elements[expr], el)
	return el
}

// Clear removes every registered element.
func (p *Page) Clear() {
	p.elements = map[string][]*Element{}
}

// FailQuery makes Query on expr return err.
func (p *Page) FailQuery(expr string, err error) {
	p.badExprs[expr] = err
}

// Goto moves the page to url without recording a navigation.
func (p *Page) Goto(url string) {
	p.CurrentURL = url
	p.startLoad()
}

func (p *Page) startLoad() {
	p.loadedAt = time.Now().Add(p.ParseDelay)
}

func (p *Page) Navigate(url string, _ time.Duration) error {
	p.Navigations = append(p.Navigations, url)
	if len(p.NavigateErrs) > 0 {
		err := p.NavigateErrs[0]
		p.NavigateErrs = p.NavigateErrs[1:]
		if err != nil {
			return err
		}
	}
	p.CurrentURL = url
	p.startLoad()
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Reload(time.Duration) error {
	p.Reloads++
	if len(p.ReloadErrs) > 0 {
		err := p.ReloadErrs[0]
		p.ReloadErrs = p.ReloadErrs[1:]
		if err != nil {
			return err
		}
	}
	p.startLoad()
	return nil
}

func (p *Page) WaitLoad(time.Duration) error {
	if p.BlockingLoad {
		if d := time.Until(p.loadedAt); d > 0 {
			time.Sleep(d)
		}
	}
	return p.WaitLoadErr
}

func (p *Page) WaitIdle(time.Duration) error { return nil }

func (p *Page) URL() string { return p.CurrentURL }

func (p *Page) Title() string { return p.PageTitle }

func (p *Page) HTML() (string, error) {
	var b strings.Builder
	b.WriteString(p.Content)
	for _, els := range p.elements {
		for _, el := range els {
			if el.Label != "" {
				b.WriteString(" ")
				b.WriteString(el.Label)
			}
		}
	}
	return b.String(), nil
}

func (p *Page) Query(sel browser.Selector) ([]browser.Element, error) {
	p.Queries = append(p.Queries, sel.Expr)
	if err, ok := p.badExprs[sel.Expr]; ok {
		return nil, err
	}
	if time.Now().Before(p.loadedAt) {
		return nil, nil
	}

	els := p.elements[sel.Expr]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (p *Page) Screenshot(path string) error {
	p.Screenshots = append(p.Screenshots, path)
	return nil
}

var _ browser.Page = (*Page)(nil)
var _ browser.Element = (*Element)(nil)
