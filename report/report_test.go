package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehilsa2/console_keepalive/auth"
	"github.com/Nehilsa2/console_keepalive/browser/browsertest"
	"github.com/Nehilsa2/console_keepalive/classify"
	"github.com/Nehilsa2/console_keepalive/humanize"
)

var started = time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

// finishedSession runs a one-page console through the runner so the
// session carries real steps and classification.
func finishedSession(t *testing.T, url, content string) *auth.Session {
	t.Helper()

	page := browsertest.NewPage("about:blank")
	page.OnNavigate = func(p *browsertest.Page, _ string) {
		p.Goto(url)
		p.Content = content
	}

	actor := humanize.NewActor(humanize.DefaultPacing(), zerolog.Nop(), humanize.WithSleeper(func(time.Duration) {}))
	r := auth.NewRunner(auth.Config{
		TargetURL:            url,
		ProviderHost:         "github.com",
		ProviderAuthorizeURL: url,
		Timeouts:             auth.Timeouts{Redirect: time.Millisecond, Console: time.Millisecond},
	}, page, actor, classify.New(classify.DefaultRules()), zerolog.Nop())

	s := auth.NewSession(auth.Credentials{Username: "u", Password: "p"})
	_ = r.Run(context.Background(), s)
	return s
}

func TestBuild_Success(t *testing.T) {
	s := finishedSession(t, "https://run.claw.cloud/console", "Welcome to ClawCloud")

	rep := Build(s, "run-1", "my-repo", started, started.Add(42*time.Second), nil)

	assert.True(t, rep.Success())
	assert.Equal(t, 0, rep.ExitCode())
	assert.Equal(t, "my-repo", rep.RunLabel)
	assert.Equal(t, 42*time.Second, rep.Duration)
	assert.Equal(t, "https://run.claw.cloud/console", rep.FinalURL)
	assert.Empty(t, rep.ErrorMessage)
	assert.Contains(t, rep.EvidenceLabels(), "found text: ClawCloud")
	assert.Len(t, rep.Steps(), 7)
}

func TestBuild_IsImmutable(t *testing.T) {
	s := finishedSession(t, "https://run.claw.cloud/console", "Welcome")
	rep := Build(s, "run-1", "label", started, started, nil)

	ev := rep.EvidenceLabels()
	ev[0] = "tampered"
	steps := rep.Steps()
	steps[0].Step = "tampered"

	assert.NotEqual(t, "tampered", rep.EvidenceLabels()[0])
	assert.NotEqual(t, "tampered", rep.Steps()[0].Step)
}

func TestBuild_Failures(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		rep := Build(nil, "run-2", "label", started, started.Add(time.Second), errors.New("missing credentials: GH_USERNAME"))
		assert.False(t, rep.Success())
		assert.Equal(t, 1, rep.ExitCode())
		assert.Contains(t, rep.ErrorMessage, "missing credentials")
		assert.Empty(t, rep.Steps())
	})

	t.Run("not verified", func(t *testing.T) {
		s := finishedSession(t, "https://github.com/orgs/acme", "Sign in to GitHub")
		rep := Build(s, "run-3", "label", started, started, nil)
		assert.False(t, rep.Success())
		assert.Contains(t, rep.ErrorMessage, auth.ErrLoginNotVerified.Error())
	})

	t.Run("run error wins", func(t *testing.T) {
		s := finishedSession(t, "https://run.claw.cloud/console", "Welcome")
		rep := Build(s, "run-4", "label", started, started, errors.New("browser crashed"))
		assert.False(t, rep.Success())
		assert.Equal(t, "browser crashed", rep.ErrorMessage)
	})
}

func TestWriteEvidence(t *testing.T) {
	s := finishedSession(t, "https://run.claw.cloud/console", "Devbox")
	rep := Build(s, "run-5", "label", started, started.Add(3*time.Second), nil)

	path := filepath.Join(t.TempDir(), "evidence.txt")
	require.NoError(t, WriteEvidence(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "run-5")
	assert.Contains(t, text, "success")
	assert.Contains(t, text, "found text: Devbox")
	assert.Contains(t, text, "landing")
	assert.Contains(t, text, "classify")
}

func TestFormatMessage_EscapesContent(t *testing.T) {
	rep := Build(nil, "run-6", "<repo & co>", started, started.Add(1500*time.Millisecond),
		errors.New(`selector "<button>" not found`))

	msg := FormatMessage(rep)

	assert.Contains(t, msg, "&lt;repo &amp; co&gt;")
	assert.NotContains(t, msg, "<button>")
	assert.Contains(t, msg, "<b>Error:</b>")
	assert.Contains(t, msg, "2026-10-18 08:30:00 UTC")
	assert.Contains(t, msg, "1.5s")
	assert.Contains(t, msg, "not clicked")
	assert.True(t, strings.HasPrefix(Subject(rep), "<b>❌"))
}

type fakeNotifier struct {
	err      error
	subjects []string
	messages []string
}

func (f *fakeNotifier) Send(_ context.Context, subject, message string) error {
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, message)
	return f.err
}

func TestDeliver(t *testing.T) {
	s := finishedSession(t, "https://run.claw.cloud/console", "Welcome")
	rep := Build(s, "run-7", "label", started, started, nil)

	n := &fakeNotifier{}
	assert.True(t, Deliver(context.Background(), n, rep, zerolog.Nop()))
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.subjects[0], "succeeded")
	assert.Contains(t, n.messages[0], "found text: Welcome")

	failing := &fakeNotifier{err: errors.New("telegram down")}
	assert.False(t, Deliver(context.Background(), failing, rep, zerolog.Nop()))

	assert.False(t, Deliver(context.Background(), nil, rep, zerolog.Nop()))
}

func TestNewTelegram_RejectsBadChatID(t *testing.T) {
	_, err := NewTelegram("token", "not-a-number")
	assert.Error(t, err)
}
