package browser

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/Nehilsa2/console_keepalive/stealth"
)

// LaunchConfig controls how the browser is started.
type LaunchConfig struct {
	Headless bool
	Bin      string
	// ActionTimeout bounds every element-level call so that nothing blocks
	// forever on a detached node.
	ActionTimeout time.Duration
}

// Session owns the browser process, its throwaway profile directory and
// the single page of a run. Close releases all three.
type Session struct {
	launcher   *launcher.Launcher
	launched   bool
	browser    *rod.Browser
	page       *rodPage
	profileDir string
	logger     zerolog.Logger
}

// Launch starts a stealth-configured browser on a fresh temporary profile
// and opens one blank page. On error everything acquired so far is
// released.
func Launch(cfg LaunchConfig, logger zerolog.Logger) (_ *Session, err error) {
	profileDir, err := os.MkdirTemp("", "browser_temp_")
	if err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	s := &Session{profileDir: profileDir, logger: logger}
	defer func() {
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("cleanup after failed launch")
			}
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sc := stealth.DefaultConfig(rng)
	sc.Headless = cfg.Headless
	sc.Bin = cfg.Bin
	sc.UserDataDir = profileDir

	logger.Info().
		Str("user_agent", sc.UserAgent).
		Int("width", sc.Viewport.Width).
		Int("height", sc.Viewport.Height).
		Str("profile", profileDir).
		Msg("🥷 launching browser")

	s.launcher = stealth.NewLauncher(sc)
	controlURL, err := s.launcher.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.launched = true

	s.browser = rod.New().ControlURL(controlURL)
	if err = s.browser.Connect(); err != nil {
		s.browser = nil
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err = stealth.ApplyToPage(page, sc); err != nil {
		return nil, err
	}

	actionTimeout := cfg.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = 15 * time.Second
	}
	s.page = &rodPage{
		page:          page,
		mouse:         stealth.NewMouse(stealth.DefaultMouseConfig()),
		actionTimeout: actionTimeout,
	}
	return s, nil
}

// Page returns the run's page.
func (s *Session) Page() Page {
	return s.page
}

// ProfileDir is the temporary profile removed by Close.
func (s *Session) ProfileDir() string {
	return s.profileDir
}

// Close shuts the browser down and deletes the profile directory. It is
// safe to call on a partially launched session; every step is attempted
// and the errors are joined.
func (s *Session) Close() error {
	var errs []error

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	// Cleanup waits for the process to exit, so only touch a launcher
	// that actually started one.
	if s.launched {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	if s.profileDir != "" {
		if err := os.RemoveAll(s.profileDir); err != nil {
			errs = append(errs, fmt.Errorf("remove profile %s: %w", s.profileDir, err))
		} else {
			s.logger.Info().Str("profile", s.profileDir).Msg("🧹 removed temporary profile")
		}
	}
	return errors.Join(errs...)
}

type rodPage struct {
	page          *rod.Page
	mouse         *stealth.Mouse
	actionTimeout time.Duration
}

func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	tp := p.page.Timeout(timeout)
	defer tp.CancelTimeout()

	if err := tp.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := tp.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) Reload(timeout time.Duration) error {
	tp := p.page.Timeout(timeout)
	defer tp.CancelTimeout()

	if err := tp.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return tp.WaitLoad()
}

func (p *rodPage) WaitLoad(timeout time.Duration) error {
	tp := p.page.Timeout(timeout)
	defer tp.CancelTimeout()
	return tp.WaitLoad()
}

func (p *rodPage) WaitIdle(timeout time.Duration) error {
	return p.page.WaitIdle(timeout)
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Title() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

func (p *rodPage) HTML() (string, error) {
	tp := p.page.Timeout(p.actionTimeout)
	defer tp.CancelTimeout()
	return tp.HTML()
}

// Query uses rod's non-waiting lookups so that a missing candidate costs
// nothing.
func (p *rodPage) Query(sel Selector) ([]Element, error) {
	var (
		els rod.Elements
		err error
	)
	switch sel.Kind {
	case KindXPath:
		els, err = p.page.ElementsX(sel.Expr)
	default:
		els, err = p.page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el, page: p}
	}
	return out, nil
}

func (p *rodPage) Screenshot(path string) error {
	tp := p.page.Timeout(p.actionTimeout)
	defer tp.CancelTimeout()

	img, err := tp.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	return os.WriteFile(path, img, 0o644)
}

type rodElement struct {
	el   *rod.Element
	page *rodPage
}

func (e *rodElement) bounded() *rod.Element {
	return e.el.Timeout(e.page.actionTimeout)
}

func (e *rodElement) WaitVisible(timeout time.Duration) error {
	te := e.el.Timeout(timeout)
	defer te.CancelTimeout()
	return te.WaitVisible()
}

func (e *rodElement) ScrollIntoView() error {
	te := e.bounded()
	defer te.CancelTimeout()
	return te.ScrollIntoView()
}

func (e *rodElement) Hover() error {
	te := e.bounded()
	defer te.CancelTimeout()
	return e.page.mouse.Hover(e.page.page, te)
}

func (e *rodElement) Click() error {
	te := e.bounded()
	defer te.CancelTimeout()
	return te.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Clear() error {
	te := e.bounded()
	defer te.CancelTimeout()

	if err := te.SelectAllText(); err != nil {
		return err
	}
	return te.Input("")
}

func (e *rodElement) Type(text string) error {
	te := e.bounded()
	defer te.CancelTimeout()
	return te.Input(text)
}

func (e *rodElement) Text() (string, error) {
	te := e.bounded()
	defer te.CancelTimeout()
	return te.Text()
}
