// Package config loads the run configuration from the environment, after
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Nehilsa2/console_keepalive/auth"
	"github.com/Nehilsa2/console_keepalive/classify"
	"github.com/Nehilsa2/console_keepalive/humanize"
)

// ErrMissingCredentials means GH_USERNAME or GH_PASSWORD is unset.
var ErrMissingCredentials = errors.New("missing credentials")

type Config struct {
	Credentials Credentials
	Notify      Notify
	Target      Target
	Browser     Browser
	Artifacts   Artifacts
	Timeouts    Timeouts
	Pacing      Pacing
	Classifier  Classifier
	PostLogin   PostLogin
	Log         Log

	RunLabel string `envconfig:"ZANGHU" default:"Unknown Repository"`
}

type Credentials struct {
	Username   string `envconfig:"GH_USERNAME"`
	Password   string `envconfig:"GH_PASSWORD"`
	TOTPSecret string `envconfig:"GH_2FA_SECRET"`
}

type Notify struct {
	TelegramToken  string `envconfig:"GH_BOTTOKEN"`
	TelegramChatID string `envconfig:"GH_CHATID"`
}

type Target struct {
	URL                  string `envconfig:"KEEPALIVE_TARGET_URL" default:"https://us-west-1.run.claw.cloud/"`
	ProviderHost         string `envconfig:"KEEPALIVE_PROVIDER_HOST" default:"github.com"`
	ProviderAuthorizeURL string `envconfig:"KEEPALIVE_PROVIDER_AUTHORIZE_URL" default:"https://github.com/login/oauth/authorize"`
	Probe                bool   `envconfig:"KEEPALIVE_PROBE" default:"true"`
	ProbeRetries         int    `envconfig:"KEEPALIVE_PROBE_RETRIES" default:"2"`
}

type Browser struct {
	Headless bool   `envconfig:"KEEPALIVE_HEADLESS" default:"true"`
	Bin      string `envconfig:"KEEPALIVE_BROWSER_BIN"`
}

type Artifacts struct {
	Dir          string `envconfig:"KEEPALIVE_ARTIFACT_DIR" default:"."`
	Screenshot   string `envconfig:"KEEPALIVE_SCREENSHOT" default:"login_result.png"`
	EvidenceFile string `envconfig:"KEEPALIVE_EVIDENCE_FILE" default:"login_evidence.txt"`
	// Empty disables run history
	HistoryDB string `envconfig:"KEEPALIVE_HISTORY_DB" default:"keepalive.db"`
}

type Timeouts struct {
	Action     time.Duration `envconfig:"KEEPALIVE_ACTION_TIMEOUT" default:"30s"`
	Navigation time.Duration `envconfig:"KEEPALIVE_NAVIGATION_TIMEOUT" default:"60s"`
	Idle       time.Duration `envconfig:"KEEPALIVE_IDLE_TIMEOUT" default:"10s"`
	Visibility time.Duration `envconfig:"KEEPALIVE_VISIBILITY_TIMEOUT" default:"10s"`
	Element    time.Duration `envconfig:"KEEPALIVE_ELEMENT_TIMEOUT" default:"15s"`
	Redirect   time.Duration `envconfig:"KEEPALIVE_REDIRECT_TIMEOUT" default:"15s"`
	Console    time.Duration `envconfig:"KEEPALIVE_CONSOLE_TIMEOUT" default:"30s"`
	Probe      time.Duration `envconfig:"KEEPALIVE_PROBE_TIMEOUT" default:"10s"`
	RetryDelay time.Duration `envconfig:"KEEPALIVE_RETRY_DELAY" default:"2s"`
}

type Pacing struct {
	ActionMin time.Duration `envconfig:"KEEPALIVE_ACTION_DELAY_MIN" default:"300ms"`
	ActionMax time.Duration `envconfig:"KEEPALIVE_ACTION_DELAY_MAX" default:"800ms"`
	KeyMin    time.Duration `envconfig:"KEEPALIVE_KEY_DELAY_MIN" default:"40ms"`
	KeyMax    time.Duration `envconfig:"KEEPALIVE_KEY_DELAY_MAX" default:"120ms"`
}

type Classifier struct {
	SuccessPhrases    []string `envconfig:"KEEPALIVE_SUCCESS_PHRASES" default:"App Launchpad,Devbox,Dashboard,Welcome,Console,ClawCloud,Projects"`
	ConsoleURLMarkers []string `envconfig:"KEEPALIVE_CONSOLE_URL_MARKERS" default:"private-team,console,dashboard"`
}

type PostLogin struct {
	Enabled bool   `envconfig:"KEEPALIVE_POST_LOGIN" default:"true"`
	Text    string `envconfig:"KEEPALIVE_POST_LOGIN_TEXT" default:"App Launchpad"`
	Refresh bool   `envconfig:"KEEPALIVE_POST_LOGIN_REFRESH" default:"true"`
}

type Log struct {
	Level  string `envconfig:"KEEPALIVE_LOG_LEVEL" default:"info"`
	Format string `envconfig:"KEEPALIVE_LOG_FORMAT" default:"console"`
}

// Load reads envFiles (default ".env") into the process environment, then
// the environment into a Config. Missing env files are not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// Validate checks what must hold before a browser is started. The 2FA
// secret is not required here; it is only needed if the provider asks.
func (c Config) Validate() error {
	var missing []string
	if c.Credentials.Username == "" {
		missing = append(missing, "GH_USERNAME")
	}
	if c.Credentials.Password == "" {
		missing = append(missing, "GH_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if u, err := url.Parse(c.Target.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid KEEPALIVE_TARGET_URL %q", c.Target.URL)
	}
	if c.Target.ProviderHost == "" {
		return errors.New("KEEPALIVE_PROVIDER_HOST must not be empty")
	}
	if c.Pacing.ActionMin < 0 || c.Pacing.ActionMin > c.Pacing.ActionMax {
		return fmt.Errorf("invalid action delay range %v..%v", c.Pacing.ActionMin, c.Pacing.ActionMax)
	}
	if c.Pacing.KeyMin < 0 || c.Pacing.KeyMin > c.Pacing.KeyMax {
		return fmt.Errorf("invalid keystroke delay range %v..%v", c.Pacing.KeyMin, c.Pacing.KeyMax)
	}
	return nil
}

// NotifyEnabled reports whether both Telegram settings are present.
func (c Config) NotifyEnabled() bool {
	return c.Notify.TelegramToken != "" && c.Notify.TelegramChatID != ""
}

func (c Config) AuthCredentials() auth.Credentials {
	return auth.Credentials{
		Username:   c.Credentials.Username,
		Password:   c.Credentials.Password,
		TOTPSecret: c.Credentials.TOTPSecret,
	}
}

// Runner converts the settings into the login runner configuration.
// Intermediate screenshots go to the artifact directory.
func (c Config) Runner() auth.Config {
	return auth.Config{
		TargetURL:            c.Target.URL,
		ProviderHost:         c.Target.ProviderHost,
		ProviderAuthorizeURL: c.Target.ProviderAuthorizeURL,
		PostLoginEnabled:     c.PostLogin.Enabled,
		PostLoginRefresh:     c.PostLogin.Refresh,
		PostLoginText:        c.PostLogin.Text,
		ScreenshotDir:        c.Artifacts.Dir,
		Timeouts: auth.Timeouts{
			Navigation: c.Timeouts.Navigation,
			Idle:       c.Timeouts.Idle,
			Visibility: c.Timeouts.Visibility,
			Element:    c.Timeouts.Element,
			Redirect:   c.Timeouts.Redirect,
			Console:    c.Timeouts.Console,
			RetryDelay: c.Timeouts.RetryDelay,
		},
	}
}

func (c Config) HumanPacing() humanize.Pacing {
	return humanize.Pacing{
		Action:    humanize.Range{Min: c.Pacing.ActionMin, Max: c.Pacing.ActionMax},
		Keystroke: humanize.Range{Min: c.Pacing.KeyMin, Max: c.Pacing.KeyMax},
	}
}

// ClassifierRules keeps the default login markers and takes phrases and
// console markers from the environment.
func (c Config) ClassifierRules() classify.Rules {
	rules := classify.DefaultRules()
	rules.Phrases = trimAll(c.Classifier.SuccessPhrases)
	rules.ConsoleURLMarkers = trimAll(c.Classifier.ConsoleURLMarkers)
	if c.Target.ProviderHost != "" && !slices.Contains(rules.LoginURLMarkers, c.Target.ProviderHost) {
		rules.LoginURLMarkers = append(rules.LoginURLMarkers, c.Target.ProviderHost)
	}
	return rules
}

// ArtifactPath places name inside the artifact directory.
func (c Config) ArtifactPath(name string) string {
	if name == "" {
		return ""
	}
	if c.Artifacts.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Artifacts.Dir, name)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
