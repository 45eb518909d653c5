package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/parser"
)

// LoadResult is the fully expanded table as rendered by the browser.
type LoadResult struct {
	Title      string
	FinalURL   string
	Expansions int
	Rows       []models.RawRow
}

// Load renders targetURL, expands every "see more" row and returns the
// final table rows.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Launch           – fresh browser process, released on every exit path
//  2. Open page        – blank tab, closed on exit
//  3. Stealth          – mask navigator.webdriver etc. (before navigation!)
//  4. Extra headers    – Accept-Language and a search Referer
//  5. Hijack           – drop images, fonts, media and trackers
//  6. Navigate         – bounded by NavigationTimeout
//  7. Table wait       – TableSelector must appear within TableWait
//  8. Expand           – searching → expanding → exhausted
//  9. Read DOM         – page.HTML() + final URL + title
//  10. Parse rows      – RowSelector over the rendered HTML
func (s *Scraper) Load(ctx context.Context, targetURL string) (*LoadResult, error) {
	cfg := s.loaderCfg

	// ── 1. Launch ─────────────────────────────────────────────────────
	browser, release, err := s.launch()
	if err != nil {
		return nil, err
	}
	defer release()

	// ── 2. Open page ──────────────────────────────────────────────────
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}
	defer func() {
		_ = page.Close()
	}()

	// ── 3. Stealth injection ──────────────────────────────────────────
	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 4. Extra headers ──────────────────────────────────────────────
	headers := map[string]string{"Accept-Language": "en-US,en;q=0.9"}
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)

	// ── 5. Hijack ─────────────────────────────────────────────────────
	if router := installHijack(page, s.filter); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 6. Navigate ───────────────────────────────────────────────────
	loadStart := time.Now()
	nav := p.Timeout(cfg.NavigationTimeout)
	navErr := nav.Navigate(targetURL)
	nav.CancelTimeout()
	if navErr != nil {
		return nil, categorizeError(navErr, "navigation to savings page failed")
	}

	// ── 7. Table wait ─────────────────────────────────────────────────
	wait := p.Timeout(cfg.TableWait)
	_, tableErr := wait.Element(cfg.TableSelector)
	wait.CancelTimeout()
	if tableErr != nil {
		return nil, classifyTableWait(ctx, tableErr, cfg.TableSelector, cfg.TableWait)
	}
	slog.Info("table present", "url", targetURL, "ms", time.Since(loadStart).Milliseconds())

	// ── 8. Expand ─────────────────────────────────────────────────────
	exp := &expander{
		source:        &rodTriggers{page: p, xpath: cfg.TriggerXPath},
		wait:          cfg.TriggerWait,
		pause:         cfg.ClickPause,
		maxExpansions: cfg.MaxExpansions,
		sleep:         sleepCtx,

		activateTimeout: cfg.ActivateTimeout,
	}
	expansions, err := exp.run(ctx)
	if err != nil {
		return nil, err
	}

	// ── 9. Read DOM ───────────────────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to read page HTML")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	// ── 10. Parse rows ────────────────────────────────────────────────
	rows, err := parser.TableRows(rawHTML, s.rowSel, finalURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "failed to parse table", err)
	}
	slog.Info("table loaded",
		"rows", len(rows),
		"expansions", expansions,
		"ms", time.Since(loadStart).Milliseconds(),
	)

	return &LoadResult{
		Title:      evalStringOrEmpty(p, `() => document.title`),
		FinalURL:   finalURL,
		Expansions: expansions,
		Rows:       rows,
	}, nil
}

// classifyTableWait maps a failed table wait to its error. Only the table
// wait's own deadline means the marker never appeared; a cancelled or expired
// run context is reported as such.
func classifyTableWait(ctx context.Context, err error, selector string, wait time.Duration) *models.ScrapeError {
	if ctx.Err() != nil {
		return categorizeError(ctx.Err(), "waiting for table")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(
			models.ErrCodeTableTimeout,
			"table body "+selector+" did not appear within "+wait.String(),
			err,
		)
	}
	return categorizeError(err, "waiting for table")
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
