// Package fetcher retrieves static detail pages and scans them for
// label/value pairs.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/parser"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ErrInvalidURL is returned for URLs that cannot be fetched at all.
var ErrInvalidURL = errors.New("fetcher: invalid url")

// Fetcher performs detail-page requests. It holds no connection state: every
// call builds its own client and closes it before returning, so a Fetcher is
// safe for concurrent use.
type Fetcher struct {
	cfg config.FetchConfig
}

// New creates a Fetcher.
func New(cfg config.FetchConfig) *Fetcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	return &Fetcher{cfg: cfg}
}

// Fetch retrieves targetURL and returns its label/value pairs. It never
// fails: any problem is logged and yields an empty mapping.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) models.DetailMapping {
	pairs, err := f.FetchPairs(ctx, targetURL)
	if err != nil {
		slog.Warn("detail fetch failed", "url", targetURL, "error", err)
		return models.DetailMapping{}
	}
	return pairs
}

// FetchPairs is Fetch with the failure reported to the caller.
func (f *Fetcher) FetchPairs(ctx context.Context, targetURL string) (models.DetailMapping, error) {
	u, err := validateURL(targetURL)
	if err != nil {
		return models.DetailMapping{}, err
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	body, finalURL, err := f.get(ctx, u.String())
	if err != nil {
		return models.DetailMapping{}, err
	}

	pairs, err := parser.DetailPairs(bytes.NewReader(body))
	if err != nil {
		return models.DetailMapping{}, err
	}

	if pairs.Len() == 0 {
		title, excerpt := parser.Describe(string(body), finalURL)
		slog.Info("detail page has no label/value rows",
			"url", targetURL,
			"title", title,
			"excerpt", excerpt,
		)
	} else {
		slog.Debug("detail page parsed",
			"url", targetURL,
			"pairs", pairs.Len(),
			"ms", time.Since(start).Milliseconds(),
		)
	}
	return pairs, nil
}

// get performs one GET with browser-like headers and returns the capped body
// and the URL after redirects.
func (f *Fetcher) get(ctx context.Context, targetURL string) ([]byte, string, error) {
	client, err := f.newClient()
	if err != nil {
		return nil, "", err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetcher: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetcher: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetcher: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("fetcher: read body: %w", err)
	}

	return body, resp.Request.URL.String(), nil
}

// newClient builds a single-use client. http(s) proxies go through the
// transport; socks5 proxies replace the dialer. When Fingerprint is set,
// direct HTTPS connections present a Chrome ClientHello.
func (f *Fetcher) newClient() (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	dial := dialFunc(dialer.DialContext)

	transport := &http.Transport{
		ForceAttemptHTTP2:   false,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if f.cfg.Proxy != "" {
		proxyURL, err := url.Parse(f.cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("fetcher: parse proxy: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			socks, err := proxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, fmt.Errorf("fetcher: socks proxy: %w", err)
			}
			cd, ok := socks.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("fetcher: socks proxy does not support contexts")
			}
			dial = cd.DialContext
		default:
			return nil, fmt.Errorf("fetcher: unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	transport.DialContext = dial
	if f.cfg.Fingerprint {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, dial, network, addr)
		}
	}

	maxRedirects := f.cfg.MaxRedirects
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("fetcher: stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// validateURL rejects empty, unparsable and non-HTTP URLs before any
// network activity.
func validateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}
