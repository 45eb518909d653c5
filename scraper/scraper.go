// Package scraper renders the savings page in a headless browser, expands
// its client-side pagination and returns the final table rows.
package scraper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/parser"
)

// Scraper loads the savings table. Each Load call owns a fresh browser
// process, so a Scraper holds only configuration.
type Scraper struct {
	browserCfg config.BrowserConfig
	loaderCfg  config.LoaderConfig
	rowSel     cascadia.Selector
	filter     *requestFilter
}

// New validates the loader configuration and returns a Scraper.
func New(browserCfg config.BrowserConfig, loaderCfg config.LoaderConfig) (*Scraper, error) {
	rowSel, err := parser.CompileSelector(loaderCfg.RowSelector)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid row selector", err)
	}
	if loaderCfg.MaxExpansions < 1 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("max expansions must be >= 1, got %d", loaderCfg.MaxExpansions), nil)
	}
	if loaderCfg.NavigationTimeout <= 0 {
		loaderCfg.NavigationTimeout = 30 * time.Second
	}
	if loaderCfg.TableWait <= 0 {
		loaderCfg.TableWait = 10 * time.Second
	}
	if loaderCfg.ActivateTimeout <= 0 {
		loaderCfg.ActivateTimeout = 10 * time.Second
	}
	if loaderCfg.TriggerWait <= 0 {
		loaderCfg.TriggerWait = 3 * time.Second
	}
	return &Scraper{
		browserCfg: browserCfg,
		loaderCfg:  loaderCfg,
		rowSel:     rowSel,
		filter:     newRequestFilter(loaderCfg.BlockedResourceTypes, loaderCfg.BlockAds),
	}, nil
}

// launch starts a browser process and connects to it. The returned release
// func closes the browser and removes its profile directory; it is safe to
// call on every exit path.
func (s *Scraper) launch() (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if s.browserCfg.Proxy != "" {
		l = l.Proxy(s.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	release := func() {
		if err := browser.Close(); err != nil {
			slog.Warn("browser close failed, killing process", "error", err)
			l.Kill()
		}
		l.Cleanup()
		slog.Debug("browser released")
	}
	return browser, release, nil
}
