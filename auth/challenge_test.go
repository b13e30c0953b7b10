package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehilsa2/console_keepalive/browser"
	"github.com/Nehilsa2/console_keepalive/browser/browsertest"
)

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		content string
		want    ChallengeKind
	}{
		{"device verification url", "https://github.com/sessions/verified-device", "", ChallengeDeviceVerification},
		{"captcha text", "https://github.com/login", "<h2>Verify you're not a robot</h2>", ChallengeCaptcha},
		{"rate limit", "https://github.com/session", "Too Many Requests", ChallengeRateLimited},
		{"suspended", "https://github.com/suspended", "", ChallengeAccountSuspended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := detectChallenge(tt.url, tt.content)
			require.NotNil(t, ch)
			assert.Equal(t, tt.want, ch.Kind)
			assert.True(t, errors.Is(ch, ErrProviderChallenge))
		})
	}

	assert.Nil(t, detectChallenge("https://github.com/login/oauth/authorize", "Authorize ClawCloud"))
}

func TestRun_DeviceVerificationStopsTheRun(t *testing.T) {
	page := browsertest.NewPage("about:blank")
	page.OnNavigate = func(p *browsertest.Page, url string) {
		p.Clear()
		p.Add(expr(browser.Text("button", "GitHub"))).OnClick = func() {
			p.Goto(loginURL)
			p.Clear()
			p.Add("#login_field")
			p.Add("#password")
			p.Add("input[name='commit']").OnClick = func() {
				p.Goto("https://github.com/sessions/verified-device")
				p.Clear()
			}
		}
	}
	sess := NewSession(Credentials{Username: "octocat", Password: "hunter2"})

	err := newTestRunner(page, testConfig()).Run(context.Background(), sess)

	var ch *ChallengeError
	require.ErrorAs(t, err, &ch)
	assert.Equal(t, ChallengeDeviceVerification, ch.Kind)
	assert.ErrorIs(t, err, ErrProviderChallenge)
	assert.Equal(t, []Step{StepLanding, StepProviderRedirect, StepCredentialSubmit}, stepNames(sess))
}
