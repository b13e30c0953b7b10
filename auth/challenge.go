package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProviderChallenge means the provider wants a human: device
// verification, captcha and the like. Retrying unattended will not help.
var ErrProviderChallenge = errors.New("provider requires manual verification")

// ChallengeKind categorizes provider interstitials.
type ChallengeKind string

const (
	ChallengeDeviceVerification ChallengeKind = "DEVICE_VERIFICATION"
	ChallengeCaptcha            ChallengeKind = "CAPTCHA"
	ChallengeRateLimited        ChallengeKind = "RATE_LIMITED"
	ChallengeAccountSuspended   ChallengeKind = "ACCOUNT_SUSPENDED"
)

// ChallengeError is a detected interstitial. It matches
// ErrProviderChallenge with errors.Is.
type ChallengeError struct {
	Kind    ChallengeKind
	Matched string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("%v: [%s] matched %q", ErrProviderChallenge, e.Kind, e.Matched)
}

func (e *ChallengeError) Unwrap() error {
	return ErrProviderChallenge
}

type challengePattern struct {
	kind ChallengeKind
	url  []string
	text []string
}

// Checked in order; the first hit wins.
var challengePatterns = []challengePattern{
	{
		kind: ChallengeDeviceVerification,
		url:  []string{"/sessions/verified-device"},
		text: []string{"device verification code", "we just sent your authentication code via email"},
	},
	{
		kind: ChallengeCaptcha,
		url:  []string{"/captcha", "octocaptcha"},
		text: []string{"verify you're not a robot", "please solve this puzzle", "verify your account"},
	},
	{
		kind: ChallengeRateLimited,
		text: []string{"too many requests", "exceeded a secondary rate limit", "please wait a few minutes before you try again"},
	},
	{
		kind: ChallengeAccountSuspended,
		url:  []string{"/suspended"},
		text: []string{"your account has been suspended", "account is suspended"},
	},
}

// detectChallenge checks a provider page for interstitials that block an
// unattended login.
func detectChallenge(url, content string) *ChallengeError {
	path := urlPath(url)
	lower := strings.ToLower(content)

	for _, p := range challengePatterns {
		for _, u := range p.url {
			if strings.Contains(path, u) {
				return &ChallengeError{Kind: p.kind, Matched: u}
			}
		}
		for _, t := range p.text {
			if strings.Contains(lower, t) {
				return &ChallengeError{Kind: p.kind, Matched: t}
			}
		}
	}
	return nil
}

// checkChallenge runs detectChallenge on the current page if it belongs to
// the provider.
func (r *Runner) checkChallenge() error {
	current := r.page.URL()
	if !r.onProvider(current) {
		return nil
	}
	html, err := r.page.HTML()
	if err != nil {
		r.logger.Debug().Err(err).Msg("could not read page for challenge check")
	}
	if ch := detectChallenge(current, html); ch != nil {
		return ch
	}
	return nil
}
