package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GH_USERNAME", "octocat")
	t.Setenv("GH_PASSWORD", "hunter2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Unknown Repository", cfg.RunLabel)
	assert.Equal(t, "https://us-west-1.run.claw.cloud/", cfg.Target.URL)
	assert.Equal(t, "github.com", cfg.Target.ProviderHost)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 300*time.Millisecond, cfg.Pacing.ActionMin)
	assert.Equal(t, 120*time.Millisecond, cfg.Pacing.KeyMax)
	assert.Equal(t, "App Launchpad", cfg.PostLogin.Text)
	assert.Equal(t, []string{"private-team", "console", "dashboard"}, cfg.Classifier.ConsoleURLMarkers)
	assert.Equal(t, "keepalive.db", cfg.Artifacts.HistoryDB)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Element)
	assert.Equal(t, 15*time.Second, cfg.Runner().Timeouts.Element)
	assert.False(t, cfg.NotifyEnabled())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"GH_USERNAME=from-file\nGH_PASSWORD=secret\nZANGHU=my-repo\nKEEPALIVE_NAVIGATION_TIMEOUT=5s\n"+
			"KEEPALIVE_SUCCESS_PHRASES=Home, Apps\nGH_BOTTOKEN=t\nGH_CHATID=42\n"), 0o600))

	// godotenv does not override variables that are already set
	for _, k := range []string{"GH_USERNAME", "GH_PASSWORD", "ZANGHU", "KEEPALIVE_NAVIGATION_TIMEOUT", "KEEPALIVE_SUCCESS_PHRASES", "GH_BOTTOKEN", "GH_CHATID"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Credentials.Username)
	assert.Equal(t, "my-repo", cfg.RunLabel)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, []string{"Home", "Apps"}, cfg.ClassifierRules().Phrases)
	assert.True(t, cfg.NotifyEnabled())
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) Config {
		t.Setenv("GH_USERNAME", "octocat")
		t.Setenv("GH_PASSWORD", "hunter2")
		cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
		require.NoError(t, err)
		return cfg
	}

	t.Run("missing both credentials", func(t *testing.T) {
		cfg := valid(t)
		cfg.Credentials.Username = ""
		cfg.Credentials.Password = ""

		err := cfg.Validate()
		require.ErrorIs(t, err, ErrMissingCredentials)
		assert.Contains(t, err.Error(), "GH_USERNAME")
		assert.Contains(t, err.Error(), "GH_PASSWORD")
	})

	t.Run("missing 2fa secret is fine", func(t *testing.T) {
		cfg := valid(t)
		cfg.Credentials.TOTPSecret = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad target url", func(t *testing.T) {
		cfg := valid(t)
		cfg.Target.URL = "not a url"
		assert.Error(t, cfg.Validate())
	})

	t.Run("inverted pacing", func(t *testing.T) {
		cfg := valid(t)
		cfg.Pacing.KeyMin = time.Second
		assert.Error(t, cfg.Validate())
	})
}

func TestConversions(t *testing.T) {
	cfg := Config{
		Credentials: Credentials{Username: "u", Password: "p", TOTPSecret: "s"},
		Target:      Target{URL: "https://x.test/", ProviderHost: "id.example.com"},
		Artifacts:   Artifacts{Dir: "out"},
		Pacing:      Pacing{ActionMin: time.Millisecond, ActionMax: 2 * time.Millisecond},
		Classifier:  Classifier{SuccessPhrases: []string{" Home ", ""}, ConsoleURLMarkers: []string{"app"}},
		PostLogin:   PostLogin{Enabled: true, Text: "Open"},
	}

	assert.Equal(t, "s", cfg.AuthCredentials().TOTPSecret)
	assert.Equal(t, 2*time.Millisecond, cfg.HumanPacing().Action.Max)

	rc := cfg.Runner()
	assert.Equal(t, "https://x.test/", rc.TargetURL)
	assert.Equal(t, "out", rc.ScreenshotDir)
	assert.True(t, rc.PostLoginEnabled)

	rules := cfg.ClassifierRules()
	assert.Equal(t, []string{"Home"}, rules.Phrases)
	assert.Contains(t, rules.LoginURLMarkers, "id.example.com")

	assert.Equal(t, filepath.Join("out", "shot.png"), cfg.ArtifactPath("shot.png"))
	assert.Equal(t, "", cfg.ArtifactPath(""))
}
