package auth

import (
	"strings"

	"github.com/Nehilsa2/console_keepalive/browser"
	"github.com/Nehilsa2/console_keepalive/selector"
)

// Selectors holds one candidate set per control the runner touches.
type Selectors struct {
	Provider   selector.Set
	Username   selector.Set
	Password   selector.Set
	Submit     selector.Set
	LoginError selector.Set

	OTPPresent selector.Set
	OTPInput   selector.Set
	OTPSubmit  selector.Set

	Authorize selector.Set

	PostLogin selector.Set
	Modal     selector.Set
	Overlay   selector.Set

	Structure selector.Set
}

// DefaultSelectors returns the candidates for a GitHub-backed console whose
// post-login control is labelled postLoginText.
func DefaultSelectors(postLoginText string) Selectors {
	css := browser.CSS
	text := browser.Text

	lastWord := postLoginText
	if fields := strings.Fields(postLoginText); len(fields) > 0 {
		lastWord = fields[len(fields)-1]
	}

	return Selectors{
		Provider: selector.New("provider button",
			text("button", "GitHub"),
			text("a", "GitHub"),
			css("[data-provider='github']"),
			css(".github-login"),
			text("*", "GitHub"),
		),
		Username: selector.New("username field",
			css("#login_field"),
			css("input[name='login']"),
			css("input[type='text']"),
		),
		Password: selector.New("password field",
			css("#password"),
			css("input[name='password']"),
			css("input[type='password']"),
		),
		Submit: selector.New("sign-in button",
			css("input[name='commit']"),
			css("button[type='submit']"),
			text("button", "Sign in"),
			css("[value='Sign in']"),
		),
		LoginError: selector.New("login error flash",
			css("#js-flash-container .flash-error"),
			css(".flash-error"),
		),

		OTPPresent: selector.New("one-time code input",
			css("#app_totp"),
			css("#otp"),
			css("input[name='otp']"),
			css("input[autocomplete='one-time-code']"),
		),
		OTPInput: selector.New("one-time code field",
			css("#app_totp"),
			css("#otp"),
			css("input[name='otp']"),
			css("input[autocomplete='one-time-code']"),
			css("input[type='text']"),
		),
		OTPSubmit: selector.New("verify button",
			css("button[type='submit']"),
			css("input[type='submit']"),
			text("button", "Verify"),
		),

		Authorize: selector.New("authorize button",
			text("button", "Authorize"),
			css("button[type='submit']"),
			css("#authorize"),
			css("input[name='authorize']"),
		),

		PostLogin: selector.New("post-login action",
			text("button", postLoginText),
			text("a", postLoginText),
			css("[href*='launchpad']"),
			css("[href*='app-launchpad']"),
			css(".app-launchpad"),
			css("#app-launchpad"),
			browser.TextWithin("nav", "a", "App"),
			browser.TextWithin("nav", "button", lastWord),
			text("*", lastWord),
		),
		Modal: selector.New("modal",
			css(".modal"),
			css(".modal-dialog"),
			css(".modal-content"),
			css(".modal-overlay"),
			css(".ant-modal"),
			css(".el-dialog"),
			css(".drawer"),
			css(".overlay"),
			css("[role='dialog']"),
			css("[aria-modal='true']"),
		),
		Overlay: selector.New("overlay",
			css("[class*='overlay']"),
			css("[class*='backdrop']"),
			css("[class*='mask']"),
		),

		Structure: selector.New("navigation shell",
			css("nav"),
			css("header"),
			css("footer"),
			css(".dashboard"),
			css(".sidebar"),
		),
	}
}

// popupIndicators are words a post-login popup tends to contain. Two or
// more on the page count as a modal.
var popupIndicators = []string{
	"Applications", "Memory", "CPU", "Status", "Launchpad", "Close", "×", "✕", "❌",
}
