// Package stealth masks the most common automation fingerprints of a
// rod-driven Chrome: launcher flags, a script injected before any page
// script runs, and human-looking mouse paths.
package stealth

import (
	"fmt"
	"math/rand"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds configuration for the stealth browser
type Config struct {
	Headless    bool
	Bin         string // empty lets rod find or download a browser
	UserDataDir string
	UserAgent   string
	Viewport    Viewport
}

// Viewport represents browser window dimensions
type Viewport struct {
	Width  int
	Height int
}

// Common realistic viewport sizes (desktop)
var commonViewports = []Viewport{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1600, 900},
	{1680, 1050},
}

var commonUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
}

// acceptLanguage must agree with navigator.languages in the script below.
const acceptLanguage = "en-US,en;q=0.9"

// DefaultConfig returns a headless configuration with a randomly picked
// realistic user agent and viewport.
func DefaultConfig(rng *rand.Rand) Config {
	vp := commonViewports[rng.Intn(len(commonViewports))]
	vp.Width += rng.Intn(20) - 10
	vp.Height += rng.Intn(20) - 10

	return Config{
		Headless:  true,
		UserAgent: commonUserAgents[rng.Intn(len(commonUserAgents))],
		Viewport:  vp,
	}
}

// NewLauncher creates a Chrome launcher with anti-detection flags.
//
// disable-blink-features=AutomationControlled keeps navigator.webdriver
// unset; the rest remove first-run UI and background chatter that a fresh
// CI profile would otherwise show.
func NewLauncher(cfg Config) *launcher.Launcher {
	l := launcher.New().
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-sync").
		Set("disable-default-apps").
		Set("disable-translate").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-features", "TranslateUI,BlinkGenPropertyTrees").
		Set("window-size", fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height)).
		Set("user-agent", cfg.UserAgent).
		NoSandbox(true).
		Headless(cfg.Headless).
		Leakless(false)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}
	return l
}

// ApplyToPage sets viewport, user agent and headers on page and injects the
// fingerprint script so it runs before the site's own scripts.
// Call it after creating the page but before the first navigation.
func ApplyToPage(page *rod.Page, cfg Config) error {
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Viewport.Width,
		Height:            cfg.Viewport.Height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: acceptLanguage,
	})
	if err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	_, err = page.SetExtraHeaders([]string{
		"Accept-Language", acceptLanguage,
		"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Cache-Control", "no-cache",
	})
	if err != nil {
		return fmt.Errorf("failed to set extra headers: %w", err)
	}

	if _, err := page.EvalOnNewDocument(Script); err != nil {
		return fmt.Errorf("failed to inject stealth script: %w", err)
	}
	return nil
}

// Script overrides the navigator properties bot checks read first.
const Script = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
		configurable: true
	});

	// Headless Chrome reports no plugins.
	Object.defineProperty(navigator, 'plugins', {
		get: () => {
			const plugins = [
				{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
				{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
				{ name: 'Native Client', filename: 'internal-nacl-plugin', description: '' }
			];
			plugins.item = (i) => plugins[i] || null;
			plugins.namedItem = (name) => plugins.find(p => p.name === name) || null;
			plugins.refresh = () => {};
			return plugins;
		},
		configurable: true
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
		configurable: true
	});

	Object.defineProperty(navigator, 'hardwareConcurrency', {
		get: () => 8,
		configurable: true
	});

	Object.defineProperty(navigator, 'deviceMemory', {
		get: () => 8,
		configurable: true
	});

	if (!window.chrome) {
		window.chrome = {};
	}
	if (!window.chrome.runtime) {
		window.chrome.runtime = {};
	}

	const originalQuery = window.navigator.permissions?.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery(parameters)
		);
	}

	// A backgrounded headless tab reports itself hidden.
	Object.defineProperty(document, 'hidden', { get: () => false, configurable: true });
	Object.defineProperty(document, 'visibilityState', { get: () => 'visible', configurable: true });

	const nativeToString = Function.prototype.toString;
	Function.prototype.toString = function() {
		if (this === window.navigator.permissions?.query) {
			return 'function query() { [native code] }';
		}
		return nativeToString.call(this);
	};
`
