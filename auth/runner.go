// Package auth drives the OAuth login flow through a fixed sequence of
// steps: landing, provider redirect, credential submit, second factor,
// authorization consent, post-login action and classification.
//
// Every step reports an Outcome. Only a fatal outcome stops the sequence;
// optional stages that do not apply are skipped.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/Nehilsa2/console_keepalive/browser"
	"github.com/Nehilsa2/console_keepalive/classify"
	"github.com/Nehilsa2/console_keepalive/humanize"
	"github.com/Nehilsa2/console_keepalive/selector"
	"github.com/Nehilsa2/console_keepalive/totp"
)

// Timeouts bound every wait the runner performs.
type Timeouts struct {
	Navigation time.Duration
	Idle       time.Duration
	Visibility time.Duration
	// Element bounds the wait for a control to appear in a freshly
	// loaded page.
	Element time.Duration
	// Redirect bounds URL waits after a click.
	Redirect time.Duration
	// Console bounds the wait for the console after consent.
	Console    time.Duration
	RetryDelay time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation: 60 * time.Second,
		Idle:       10 * time.Second,
		Visibility: 10 * time.Second,
		Element:    15 * time.Second,
		Redirect:   15 * time.Second,
		Console:    30 * time.Second,
		RetryDelay: 2 * time.Second,
	}
}

// Config is everything the runner needs besides the page.
type Config struct {
	TargetURL            string
	ProviderHost         string
	ProviderAuthorizeURL string

	PostLoginEnabled bool
	PostLoginRefresh bool
	PostLoginText    string

	// ScreenshotDir receives intermediate screenshots. Empty disables them.
	ScreenshotDir string

	Timeouts Timeouts
}

// Runner executes the login steps against one page.
type Runner struct {
	cfg        Config
	page       browser.Page
	actor      *humanize.Actor
	classifier *classify.Classifier
	selectors  Selectors
	prober     Prober
	now        func() time.Time
	logger     zerolog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

func WithSelectors(sel Selectors) Option {
	return func(r *Runner) { r.selectors = sel }
}

// WithProber enables the reachability check before landing.
func WithProber(p Prober) Option {
	return func(r *Runner) { r.prober = p }
}

// WithClock sets the clock used for one-time codes.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(cfg Config, page browser.Page, actor *humanize.Actor, classifier *classify.Classifier, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		page:       page,
		actor:      actor,
		classifier: classifier,
		selectors:  DefaultSelectors(cfg.PostLoginText),
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type stepFunc func(ctx context.Context, s *Session) Outcome

// Run executes the steps in order and returns the error of the first
// fatal outcome. The session holds the full step log either way.
func (r *Runner) Run(ctx context.Context, s *Session) error {
	if err := s.Err(); err != nil {
		return err
	}

	steps := []struct {
		name Step
		run  stepFunc
	}{
		{StepLanding, r.landing},
		{StepProviderRedirect, r.providerRedirect},
		{StepCredentialSubmit, r.credentialSubmit},
		{StepTwoFactor, r.twoFactor},
		{StepAuthorize, r.authorize},
		{StepPostLoginAction, r.postLoginAction},
		{StepClassify, r.classify},
	}

	for _, st := range steps {
		started := time.Now()
		out := st.run(ctx, s)
		elapsed := time.Since(started)

		s.record(st.name, out, elapsed)
		r.refresh(s)

		ev := r.logger.Info()
		switch out.Status {
		case StatusFailedFatal:
			ev = r.logger.Error()
		case StatusFailedRecoverable:
			ev = r.logger.Warn()
		}
		ev.Str("step", string(st.name)).
			Str("outcome", out.String()).
			Str("url", s.CurrentURL).
			Dur("elapsed", elapsed).
			Msg("step finished")

		if out.IsFatal() {
			return out.Err
		}
	}
	return nil
}

func (r *Runner) refresh(s *Session) {
	s.CurrentURL = r.page.URL()
	s.PageTitle = r.page.Title()
	html, err := r.page.HTML()
	if err != nil {
		r.logger.Debug().Err(err).Msg("could not read page content")
		return
	}
	s.PageContent = html
}

func (r *Runner) landing(ctx context.Context, _ *Session) Outcome {
	t := r.cfg.Timeouts
	target := r.cfg.TargetURL

	if r.prober != nil {
		if err := r.prober.Probe(ctx, target); err != nil {
			r.logger.Warn().Err(err).Str("url", target).Msg("site looks down, trying the browser anyway")
		}
	}

	attempt := 0
	err := retry.Do(func() error {
		attempt++
		if attempt == 1 {
			return r.page.Navigate(target, t.Navigation)
		}
		return r.page.Reload(t.Navigation)
	},
		retry.Attempts(2),
		retry.Delay(t.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn().
				Err(err).
				Uint("retry_number", n).
				Str("url", target).
				Msg("navigation failed, reloading")
		}),
	)
	if err != nil {
		return Fatal(fmt.Errorf("%w: %s: %w", ErrNavigationUnreachable, target, err))
	}

	if err := r.page.WaitIdle(t.Idle); err != nil {
		r.logger.Debug().Err(err).Msg("page did not go idle")
	}

	if attempt > 1 {
		return SucceededWithFallback(1, "reload")
	}
	return Succeeded()
}

func (r *Runner) providerRedirect(_ context.Context, s *Session) Outcome {
	t := r.cfg.Timeouts

	m, err := r.locate(r.selectors.Provider)
	if err == nil {
		r.logger.Debug().Str("selector", m.Selector.String()).Int("index", m.Index).Msg("found provider button")
		err = r.actor.HoverThenClick(m.Element)
	}
	if err == nil {
		s.MarkProviderButtonClicked()
		if _, werr := browser.WaitURL(r.page, r.onProvider, t.Redirect); werr != nil {
			r.logger.Warn().Err(werr).Msg("provider page did not open in time")
		} else {
			r.settle()
		}
		return SucceededWithFallback(m.Index, "")
	}

	r.logger.Warn().Err(err).Str("url", r.cfg.ProviderAuthorizeURL).Msg("provider button unusable, navigating directly")
	if nerr := r.page.Navigate(r.cfg.ProviderAuthorizeURL, t.Navigation); nerr != nil {
		return Fatal(fmt.Errorf("%w: %w", ErrProviderControlNotFound, errors.Join(err, nerr)))
	}
	return SucceededWithFallback(r.selectors.Provider.Len(), "direct authorize URL")
}

func (r *Runner) credentialSubmit(_ context.Context, s *Session) Outcome {
	t := r.cfg.Timeouts
	if !r.atLoginForm(r.page.URL()) {
		return Skipped("not on the provider login form")
	}
	creds := s.Credentials()

	user, err := r.locate(r.selectors.Username)
	if err != nil {
		return Fatal(fmt.Errorf("%w: %w", ErrCredentialFormNotFound, err))
	}
	if err := r.actor.TypeHumanlike(user.Element, creds.Username); err != nil {
		return Fatal(fmt.Errorf("%w: typing username: %w", ErrCredentialFormNotFound, err))
	}

	pass, err := r.locate(r.selectors.Password)
	if err != nil {
		return Fatal(fmt.Errorf("%w: %w", ErrCredentialFormNotFound, err))
	}
	if err := r.actor.TypeHumanlike(pass.Element, creds.Password); err != nil {
		return Fatal(fmt.Errorf("%w: typing password: %w", ErrCredentialFormNotFound, err))
	}

	submit, err := r.locate(r.selectors.Submit)
	if err != nil {
		return Fatal(fmt.Errorf("%w: %w", ErrCredentialFormNotFound, err))
	}
	if err := r.actor.HoverThenClick(submit.Element); err != nil {
		return Fatal(fmt.Errorf("%w: submitting: %w", ErrCredentialFormNotFound, err))
	}

	left := func(u string) bool { return !r.atLoginForm(u) }
	if _, err := browser.WaitURL(r.page, left, t.Redirect); err != nil {
		if _, flashed := r.selectors.LoginError.Present(r.page); flashed {
			return Fatal(ErrCredentialsRejected)
		}
		r.logger.Warn().Err(err).Msg("still on the login form after submit")
	} else {
		r.settle()
	}
	if err := r.checkChallenge(); err != nil {
		return Fatal(err)
	}

	return SucceededWithFallback(max(user.Index, pass.Index, submit.Index), "")
}

func (r *Runner) twoFactor(_ context.Context, s *Session) Outcome {
	t := r.cfg.Timeouts

	_, inputPresent := r.selectors.OTPPresent.Present(r.page)
	if !r.twoFactorURL(r.page.URL()) && !inputPresent {
		return Skipped("no second factor prompt")
	}

	secret := s.Credentials().TOTPSecret
	if secret == "" {
		return Fatal(ErrMissingSecondFactorSecret)
	}
	code, err := totp.Generate(secret, r.now())
	if err != nil {
		return Fatal(fmt.Errorf("failed to generate one-time code: %w", err))
	}

	m, err := r.locate(r.selectors.OTPInput)
	if err != nil {
		return Fatal(fmt.Errorf("%w: %w", ErrSecondFactorInputNotFound, err))
	}
	if err := r.actor.HoverThenClick(m.Element); err != nil {
		r.logger.Debug().Err(err).Msg("could not focus code field, typing anyway")
	}
	if err := r.actor.TypeHumanlike(m.Element, code); err != nil {
		return Fatal(fmt.Errorf("failed to type one-time code: %w", err))
	}

	if sm, err := r.selectors.OTPSubmit.Resolve(r.page, t.Visibility); err == nil {
		if err := r.actor.HoverThenClick(sm.Element); err != nil {
			r.logger.Warn().Err(err).Msg("verify click failed, relying on auto-submit")
		}
	} else {
		r.logger.Debug().Err(err).Msg("no verify button, relying on auto-submit")
	}
	s.MarkTwoFactorHandled()

	left := func(u string) bool { return !r.twoFactorURL(u) }
	if _, err := browser.WaitURL(r.page, left, t.Redirect); err != nil {
		r.logger.Warn().Err(err).Msg("still on the second factor page")
	} else {
		r.settle()
	}
	if err := r.checkChallenge(); err != nil {
		return Fatal(err)
	}

	return SucceededWithFallback(m.Index, "")
}

func (r *Runner) authorize(_ context.Context, s *Session) Outcome {
	if !r.consentURL(r.page.URL()) {
		r.waitForConsole()
		return Skipped("no authorization prompt")
	}

	m, err := r.locate(r.selectors.Authorize)
	if err != nil {
		return Recoverable(err.Error())
	}
	if err := r.actor.HoverThenClick(m.Element); err != nil {
		return Recoverable(err.Error())
	}
	s.MarkAuthorizeHandled()
	r.waitForConsole()

	return SucceededWithFallback(m.Index, "")
}

// settle waits for the document behind a URL change to load. The URL
// flips as soon as navigation starts, long before the new page is parsed.
func (r *Runner) settle() {
	if err := r.page.WaitLoad(r.cfg.Timeouts.Navigation); err != nil {
		r.logger.Debug().Err(err).Msg("page did not finish loading")
	}
}

// locate gives set a bounded chance to appear, then resolves it.
func (r *Runner) locate(set selector.Set) (selector.Match, error) {
	t := r.cfg.Timeouts
	if _, err := set.WaitPresent(r.page, t.Element); err != nil {
		return selector.Match{Index: -1}, err
	}
	return set.Resolve(r.page, t.Visibility)
}

// waitForConsole waits for the browser to leave the provider and for the
// next page to load. Timeouts are only logged.
func (r *Runner) waitForConsole() {
	t := r.cfg.Timeouts
	if !r.onProvider(r.page.URL()) {
		return
	}

	gone := func(u string) bool { return !r.onProvider(u) }
	if _, err := browser.WaitURL(r.page, gone, t.Console); err != nil {
		r.logger.Warn().Err(err).Msg("browser did not leave the provider")
		return
	}
	if err := r.page.WaitLoad(t.Navigation); err != nil {
		r.logger.Debug().Err(err).Msg("console did not finish loading")
	}
	if err := r.page.WaitIdle(t.Idle); err != nil {
		r.logger.Debug().Err(err).Msg("console did not go idle")
	}
}

func (r *Runner) postLoginAction(_ context.Context, s *Session) Outcome {
	t := r.cfg.Timeouts

	if !r.cfg.PostLoginEnabled {
		return Skipped("disabled")
	}
	if r.onProvider(r.page.URL()) {
		return Skipped("still on the provider")
	}

	if r.cfg.PostLoginRefresh {
		if err := r.page.Reload(t.Navigation); err != nil {
			r.logger.Warn().Err(err).Msg("refresh before post-login action failed")
		} else if err := r.page.WaitIdle(t.Idle); err != nil {
			r.logger.Debug().Err(err).Msg("page did not go idle after refresh")
		}
	}

	m, err := r.locate(r.selectors.PostLogin)
	if err != nil {
		return Recoverable(err.Error())
	}
	r.screenshot("post_login_before.png")

	if err := r.actor.HoverThenClick(m.Element); err != nil {
		return Recoverable(err.Error())
	}
	s.MarkPostLoginActionClicked()

	if err := r.page.WaitIdle(t.Idle); err != nil {
		r.logger.Debug().Err(err).Msg("page did not go idle after post-login click")
	}

	if how, ok := r.detectModal(); ok {
		s.MarkPostLoginModalDetected()
		r.logger.Info().Str("detected_by", how).Msg("post-login modal opened")
	} else {
		r.logger.Warn().Msg("no modal after post-login click")
	}
	r.screenshot("post_login_modal.png")

	return SucceededWithFallback(m.Index, "")
}

// detectModal looks for a visible dialog, then for popup wording, then for
// an overlay element.
func (r *Runner) detectModal() (string, bool) {
	if m, err := r.selectors.Modal.Resolve(r.page, r.cfg.Timeouts.Visibility); err == nil {
		return m.Selector.String(), true
	}

	if html, err := r.page.HTML(); err == nil {
		var found []string
		for _, word := range popupIndicators {
			if strings.Contains(html, word) {
				found = append(found, word)
			}
		}
		if len(found) >= 2 {
			return "keywords: " + strings.Join(found, ", "), true
		}
	}

	if i, ok := r.selectors.Overlay.Present(r.page); ok {
		return r.selectors.Overlay.Candidates()[i].String(), true
	}
	return "", false
}

func (r *Runner) classify(_ context.Context, s *Session) Outcome {
	snap := classify.Snapshot{URL: r.page.URL()}

	html, err := r.page.HTML()
	if err != nil {
		r.logger.Warn().Err(err).Msg("could not read final page content")
	}
	snap.Content = html

	if i, ok := r.selectors.Structure.Present(r.page); ok {
		snap.Structure = r.selectors.Structure.Candidates()[i].Expr
	}

	res := r.classifier.Classify(snap)
	s.setResult(res)
	if !res.Success {
		return Fatal(fmt.Errorf("%w: no success signal at %s", ErrLoginNotVerified, snap.URL))
	}

	r.logger.Info().Strs("evidence", res.Labels()).Msg("login verified")
	return Succeeded()
}

func (r *Runner) screenshot(name string) {
	if r.cfg.ScreenshotDir == "" {
		return
	}
	path := filepath.Join(r.cfg.ScreenshotDir, name)
	if err := r.page.Screenshot(path); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("screenshot failed")
	}
}

func (r *Runner) onProvider(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	want := strings.ToLower(r.cfg.ProviderHost)
	return host == want || strings.HasSuffix(host, "."+want)
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Path)
}

func (r *Runner) twoFactorURL(raw string) bool {
	return containsAny(urlPath(raw), "two-factor", "two_factor", "app_totp", "otp")
}

func (r *Runner) consentURL(raw string) bool {
	return r.onProvider(raw) && containsAny(urlPath(raw), "authorize", "oauth")
}

// atLoginForm matches the provider's sign-in pages but not the second
// factor, consent or challenge pages that share their path prefixes.
func (r *Runner) atLoginForm(raw string) bool {
	if !r.onProvider(raw) || r.twoFactorURL(raw) || r.consentURL(raw) || detectChallenge(raw, "") != nil {
		return false
	}
	return containsAny(urlPath(raw), "login", "signin", "session")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
