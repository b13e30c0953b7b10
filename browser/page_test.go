package browser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehilsa2/console_keepalive/browser"
	"github.com/Nehilsa2/console_keepalive/browser/browsertest"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		sel  browser.Selector
		want string
	}{
		{"tag", browser.Text("button", "GitHub"), `//button[contains(., 'GitHub')]`},
		{"any tag", browser.Text("*", "Launchpad"), `//body//*[not(self::script or self::style)][text()[contains(., 'Launchpad')]]`},
		{"scoped", browser.TextWithin("nav", "a", "App"), `//nav//a[contains(., 'App')]`},
		{"apostrophe", browser.Text("button", "Don't"), `//button[contains(., "Don't")]`},
		{"both quotes", browser.Text("a", `it's "x"`), `//a[contains(., concat('it', "'", 's "x"'))]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, browser.KindXPath, tt.sel.Kind)
			assert.Equal(t, tt.want, tt.sel.Expr)
		})
	}
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "css:#login_field", browser.CSS("#login_field").String())
	assert.Equal(t, "xpath://a", browser.XPath("//a").String())
}

func TestWaitURL_Immediate(t *testing.T) {
	page := browsertest.NewPage("https://github.com/login")

	got, err := browser.WaitURL(page, func(u string) bool { return u != "" }, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login", got)
}

func TestWaitURL_Timeout(t *testing.T) {
	page := browsertest.NewPage("https://github.com/login")

	start := time.Now()
	got, err := browser.WaitURL(page, func(string) bool { return false }, 300*time.Millisecond)

	assert.ErrorIs(t, err, browser.ErrURLTimeout)
	assert.Equal(t, "https://github.com/login", got)
	assert.Less(t, time.Since(start), 2*time.Second)
}
