package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/savings/api/handler"
	"github.com/use-agent/savings/cache"
	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/fetcher"
	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/pipeline"
)

type idleRunner struct{}

func (idleRunner) Execute(context.Context, pipeline.Options) (*pipeline.Result, error) {
	return &pipeline.Result{Report: &models.RunReport{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"k1"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runs := handler.NewRunStore(ctx, idleRunner{})
	f := fetcher.New(config.FetchConfig{Timeout: 2 * time.Second})
	return NewRouter(runs, f, cfg, cache.New(100), time.Now())
}

func request(t *testing.T, h http.Handler, method, path, key, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w.Code
}

func TestHealthSkipsAuth(t *testing.T) {
	h := newTestRouter(t, testConfig())
	var resp models.HealthResponse
	if code := request(t, h, http.MethodGet, "/api/v1/health", "", "", &resp); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if resp.Status != "healthy" || resp.Version == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuth(t *testing.T) {
	h := newTestRouter(t, testConfig())

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", "k1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]any
			code := request(t, h, http.MethodGet, "/api/v1/runs/run-x", tt.key, "", &resp)
			if code != tt.want {
				t.Errorf("code = %d, want %d", code, tt.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-x", nil)
	req.Header.Set("Authorization", "Bearer k1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("bearer auth: code = %d, want 404", w.Code)
	}
}

func TestAuthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = false
	h := newTestRouter(t, cfg)
	if code := request(t, h, http.MethodGet, "/api/v1/runs/run-x", "", "", nil); code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	h := newTestRouter(t, cfg)

	if code := request(t, h, http.MethodGet, "/api/v1/runs/a", "k1", "", nil); code != http.StatusNotFound {
		t.Fatalf("first request = %d", code)
	}
	var resp models.ErrorResponse
	if code := request(t, h, http.MethodGet, "/api/v1/runs/a", "k1", "", &resp); code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeRateLimited {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestDetail(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<table><tr><th>Vendor</th><td>ACME</td></tr><tr><td>PIID</td><td>47QTCA</td></tr></table>`)
	}))
	defer srv.Close()

	h := newTestRouter(t, testConfig())
	body := fmt.Sprintf(`{"url":%q,"max_age_ms":60000}`, srv.URL+"/award")

	var first models.DetailResponse
	if code := request(t, h, http.MethodPost, "/api/v1/detail", "k1", body, &first); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if !first.Success || first.Pairs != 2 || first.CacheStatus != "miss" {
		t.Errorf("first = %+v", first)
	}
	if got := first.Data.Keys(); len(got) != 2 || got[0] != "Vendor" || got[1] != "PIID" {
		t.Errorf("keys = %v", got)
	}

	var second models.DetailResponse
	request(t, h, http.MethodPost, "/api/v1/detail", "k1", body, &second)
	if second.CacheStatus != "hit" || second.Pairs != 2 {
		t.Errorf("second = %+v", second)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}

	var uncached models.DetailResponse
	request(t, h, http.MethodPost, "/api/v1/detail", "k1", fmt.Sprintf(`{"url":%q}`, srv.URL+"/award"), &uncached)
	if uncached.CacheStatus != "" || hits.Load() != 2 {
		t.Errorf("max_age 0 should bypass the cache: %+v hits=%d", uncached, hits.Load())
	}
}

func TestDetailErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h := newTestRouter(t, testConfig())

	tests := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"missing url", `{}`, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"unsupported scheme", `{"url":"ftp://fpds.gov/x"}`, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"upstream 404", fmt.Sprintf(`{"url":%q}`, srv.URL+"/gone"), http.StatusBadGateway, models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp models.DetailResponse
			if code := request(t, h, http.MethodPost, "/api/v1/detail", "k1", tt.body, &resp); code != tt.code {
				t.Errorf("code = %d, want %d", code, tt.code)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.err {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}
