package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Loader    LoaderConfig
	Enrich    EnrichConfig
	Fetch     FetchConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser launched for each run.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// Proxy is passed to Chrome as --proxy-server.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// LoaderConfig controls how the savings table is rendered and expanded.
type LoaderConfig struct {
	// SourceURL is the page holding the savings table.
	SourceURL string // default: "https://doge.gov/savings"

	// NavigationTimeout bounds page.Navigate alone.
	NavigationTimeout time.Duration // default: 30s

	// TableSelector marks the table body that must appear before scraping.
	TableSelector string // default: "tbody"

	// TableWait is how long to wait for TableSelector.
	TableWait time.Duration // default: 10s

	// TriggerXPath locates the "see more" row.
	TriggerXPath string // default: //tr[td[contains(text(), 'see more')]]

	// TriggerWait bounds each search for the trigger row.
	TriggerWait time.Duration // default: 3s

	// ActivateTimeout bounds a single scroll-and-click on the trigger row.
	ActivateTimeout time.Duration // default: 10s

	// ClickPause is the settle time after each activation.
	ClickPause time.Duration // default: 1s

	// MaxExpansions caps the number of activations per run.
	MaxExpansions int // default: 500

	// RowSelector selects data rows once expansion is done.
	RowSelector string // default: "tbody tr"

	// Stealth injects go-rod/stealth before navigation.
	Stealth bool // default: true

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// EnrichConfig controls detail-page enrichment.
type EnrichConfig struct {
	// Domain is the case-insensitive substring a link must contain.
	Domain string // default: "fpds.gov"

	// Limit is how many leading records are enriched; 0 means all.
	Limit int // default: 10

	// Delay is the pause after each record (sequential) or the per-host
	// token interval (pooled).
	Delay time.Duration // default: 2s

	// Workers > 1 switches to the bounded worker pool.
	Workers int // default: 1
}

// FetchConfig controls detail-page HTTP requests.
type FetchConfig struct {
	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 30s

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 // default: 10 MiB

	// Fingerprint dials HTTPS with a Chrome TLS ClientHello.
	Fingerprint bool // default: true

	// Proxy is an optional http(s) or socks5 proxy URL.
	Proxy string

	// MaxRedirects bounds redirect following.
	MaxRedirects int // default: 10
}

// OutputConfig controls the result file.
type OutputConfig struct {
	Dir    string // default: "."
	Prefix string // default: "savings_data"
	Format string // "csv" or "xlsx"; default: "csv"

	// PreviewRows is how many records the CLI renders after a run.
	PreviewRows int // default: 5
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the detail lookup cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached detail mappings.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SAVINGS_HOST", "0.0.0.0"),
			Port: envIntOr("SAVINGS_PORT", 8080),
			Mode: envOr("SAVINGS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SAVINGS_HEADLESS", true),
			Proxy:      os.Getenv("SAVINGS_BROWSER_PROXY"),
			NoSandbox:  envBoolOr("SAVINGS_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SAVINGS_BROWSER_BIN"),
		},
		Loader: LoaderConfig{
			SourceURL:         envOr("SAVINGS_SOURCE_URL", "https://doge.gov/savings"),
			NavigationTimeout: envDurationOr("SAVINGS_NAV_TIMEOUT", 30*time.Second),
			TableSelector:     envOr("SAVINGS_TABLE_SELECTOR", "tbody"),
			TableWait:         envDurationOr("SAVINGS_TABLE_WAIT", 10*time.Second),
			TriggerXPath:      envOr("SAVINGS_TRIGGER_XPATH", "//tr[td[contains(text(), 'see more')]]"),
			TriggerWait:       envDurationOr("SAVINGS_TRIGGER_WAIT", 3*time.Second),
			ActivateTimeout:   envDurationOr("SAVINGS_ACTIVATE_TIMEOUT", 10*time.Second),
			ClickPause:        envDurationOr("SAVINGS_CLICK_PAUSE", 1*time.Second),
			MaxExpansions:     envIntOr("SAVINGS_MAX_EXPANSIONS", 500),
			RowSelector:       envOr("SAVINGS_ROW_SELECTOR", "tbody tr"),
			Stealth:           envBoolOr("SAVINGS_STEALTH", true),
			BlockAds:          envBoolOr("SAVINGS_BLOCK_ADS", true),
			BlockedResourceTypes: envSliceOr("SAVINGS_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Enrich: EnrichConfig{
			Domain:  envOr("SAVINGS_ENRICH_DOMAIN", "fpds.gov"),
			Limit:   envIntOr("SAVINGS_ENRICH_LIMIT", 10),
			Delay:   envDurationOr("SAVINGS_ENRICH_DELAY", 2*time.Second),
			Workers: envIntOr("SAVINGS_ENRICH_WORKERS", 1),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("SAVINGS_FETCH_TIMEOUT", 30*time.Second),
			MaxBodyBytes: int64(envIntOr("SAVINGS_FETCH_MAX_BODY", 10<<20)),
			Fingerprint:  envBoolOr("SAVINGS_FETCH_FINGERPRINT", true),
			Proxy:        os.Getenv("SAVINGS_FETCH_PROXY"),
			MaxRedirects: envIntOr("SAVINGS_FETCH_MAX_REDIRECTS", 10),
		},
		Output: OutputConfig{
			Dir:         envOr("SAVINGS_OUTPUT_DIR", "."),
			Prefix:      envOr("SAVINGS_OUTPUT_PREFIX", "savings_data"),
			Format:      envOr("SAVINGS_OUTPUT_FORMAT", "csv"),
			PreviewRows: envIntOr("SAVINGS_PREVIEW_ROWS", 5),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SAVINGS_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SAVINGS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SAVINGS_RATE_RPS", 5.0),
			Burst:             envIntOr("SAVINGS_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SAVINGS_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("SAVINGS_LOG_LEVEL", "info"),
			Format: envOr("SAVINGS_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error

	for name, sel := range map[string]string{
		"table selector": c.Loader.TableSelector,
		"row selector":   c.Loader.RowSelector,
	} {
		if _, err := cascadia.Compile(sel); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid %s %q: %w", name, sel, err))
		}
	}

	if strings.TrimSpace(c.Loader.TriggerXPath) == "" {
		errs = append(errs, errors.New("config: trigger xpath is empty"))
	}
	if c.Loader.MaxExpansions < 1 {
		errs = append(errs, fmt.Errorf("config: max expansions must be >= 1, got %d", c.Loader.MaxExpansions))
	}
	if c.Enrich.Limit < 0 {
		errs = append(errs, fmt.Errorf("config: enrich limit must be >= 0, got %d", c.Enrich.Limit))
	}
	if c.Enrich.Delay < 0 {
		errs = append(errs, fmt.Errorf("config: enrich delay must be >= 0, got %s", c.Enrich.Delay))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("config: fetch max body must be > 0, got %d", c.Fetch.MaxBodyBytes))
	}
	switch c.Output.Format {
	case "csv", "xlsx":
	default:
		errs = append(errs, fmt.Errorf("config: unknown output format %q", c.Output.Format))
	}

	return errors.Join(errs...)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
