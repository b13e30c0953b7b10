package browser

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><head><title>Sign in to GitHub</title></head><body>
<form>
  <input id="login_field" name="login" type="text">
  <input id="password" type="password" style="display:none">
  <button type="submit">Sign in</button>
</form>
</body></html>`

func launchLocal(t *testing.T) *Session {
	t.Helper()

	// Needs a real Chrome; skip in short mode and on machines without one.
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no local Chrome found")
	}

	s, err := Launch(LaunchConfig{Headless: true, Bin: bin, ActionTimeout: 10 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestSession_QueryAndType(t *testing.T) {
	s := launchLocal(t)
	defer s.Close()

	page := s.Page()
	require.NoError(t, page.Navigate("data:text/html,"+url.PathEscape(fixture), 20*time.Second))
	assert.Equal(t, "Sign in to GitHub", page.Title())

	inputs, err := page.Query(CSS("#login_field"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.NoError(t, inputs[0].WaitVisible(5*time.Second))
	require.NoError(t, inputs[0].Type("o"))
	require.NoError(t, inputs[0].Type("k"))

	buttons, err := page.Query(Text("button", "Sign in"))
	require.NoError(t, err)
	assert.Len(t, buttons, 1)

	hidden, err := page.Query(CSS("#password"))
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	assert.Error(t, hidden[0].WaitVisible(500*time.Millisecond))

	none, err := page.Query(CSS("#otp"))
	require.NoError(t, err)
	assert.Empty(t, none)

	shot := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, page.Screenshot(shot))
	assert.FileExists(t, shot)
}

func TestSession_CloseRemovesProfile(t *testing.T) {
	s := launchLocal(t)
	dir := s.ProfileDir()
	require.DirExists(t, dir)

	require.NoError(t, s.Close())

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

const coveredFixture = `<html><head><title>Launchpad</title>
<script>var label = "Launchpad";</script></head><body>
<button id="launch">Launchpad</button>
<div style="position:fixed;top:0;left:0;width:100%;height:100%;z-index:99;background:#fff">cookie banner</div>
</body></html>`

func TestSession_AnyTagTextSkipsHead(t *testing.T) {
	s := launchLocal(t)
	defer s.Close()

	page := s.Page()
	require.NoError(t, page.Navigate("data:text/html,"+url.PathEscape(coveredFixture), 20*time.Second))

	els, err := page.Query(Text("*", "Launchpad"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.NoError(t, els[0].WaitVisible(5*time.Second))
}

func TestSession_HoverCoveredElementIsBounded(t *testing.T) {
	bin, ok := launcher.LookPath()
	if testing.Short() || !ok {
		t.Skip("needs a local Chrome")
	}
	s, err := Launch(LaunchConfig{Headless: true, Bin: bin, ActionTimeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	page := s.Page()
	require.NoError(t, page.Navigate("data:text/html,"+url.PathEscape(coveredFixture), 20*time.Second))

	els, err := page.Query(CSS("#launch"))
	require.NoError(t, err)
	require.Len(t, els, 1)

	start := time.Now()
	_ = els[0].Hover()
	assert.Less(t, time.Since(start), 10*time.Second)
}
