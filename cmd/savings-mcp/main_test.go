package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/savings/models"
)

func init() {
	pollInterval = 10 * time.Millisecond
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text, res.IsError
}

func fakeAPI(t *testing.T, finalStatus models.RunStatusResponse) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var polls atomic.Int32
	var lastRun atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/runs":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			lastRun.Store(body)
			_ = json.NewEncoder(w).Encode(models.RunResponse{ID: "run-1", Status: models.RunStatusProcessing})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/runs/run-1":
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(models.RunStatusResponse{ID: "run-1", Status: models.RunStatusProcessing})
				return
			}
			_ = json.NewEncoder(w).Encode(finalStatus)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastRun
}

func TestRunScrapeCompleted(t *testing.T) {
	srv, lastRun := fakeAPI(t, models.RunStatusResponse{
		ID:     "run-1",
		Status: models.RunStatusCompleted,
		Report: &models.RunReport{
			RecordsExtracted:     12,
			EnrichmentCandidates: 10,
			Eligible:             6,
			Enriched:             6,
			OutputPath:           "savings_data_20250214_120000.csv",
			Format:               "csv",
			TotalSavedBillions:   1.2,
		},
	})

	text, isErr := callTool(t, handleRunScrape(srv.URL, "k1"), map[string]any{
		"enrich_limit": 0,
		"format":       "xlsx",
	})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	for _, want := range []string{"Run run-1 completed", "Records: 12", "Enriched: 6 of 6 eligible", "$1.20 billion"} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}

	body := lastRun.Load().(map[string]any)
	if body["format"] != "xlsx" || body["enrich_limit"] != float64(0) {
		t.Errorf("run payload = %v", body)
	}
	if _, ok := body["url"]; ok {
		t.Errorf("url sent although not given: %v", body)
	}
}

func TestRunScrapeFailed(t *testing.T) {
	srv, _ := fakeAPI(t, models.RunStatusResponse{
		ID:     "run-1",
		Status: models.RunStatusFailed,
		Error:  &models.ErrorDetail{Code: models.ErrCodeTableTimeout, Message: "table never appeared"},
	})

	text, isErr := callTool(t, handleRunScrape(srv.URL, "k1"), map[string]any{})
	if !isErr {
		t.Fatalf("expected tool error, got %s", text)
	}
	if !strings.Contains(text, models.ErrCodeTableTimeout) {
		t.Errorf("error text = %q", text)
	}
}

func TestFetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.DetailRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.URL == "https://fpds.gov/bad" {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(models.DetailResponse{
				URL:   req.URL,
				Error: &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: "HTTP 500"},
			})
			return
		}
		var pairs models.DetailMapping
		pairs.Set("Vendor", "ACME")
		pairs.Set("PIID", "47QTCA")
		_ = json.NewEncoder(w).Encode(models.DetailResponse{Success: true, URL: req.URL, Data: pairs, Pairs: 2})
	}))
	defer srv.Close()

	h := handleFetchDetail(srv.URL, "k1")

	text, isErr := callTool(t, h, map[string]any{"url": "https://fpds.gov/ok"})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if !strings.Contains(text, "Pairs: 2") || strings.Index(text, "Vendor") > strings.Index(text, "PIID") {
		t.Errorf("result = %s", text)
	}

	text, isErr = callTool(t, h, map[string]any{"url": "https://fpds.gov/bad"})
	if !isErr || !strings.Contains(text, models.ErrCodeNavigation) {
		t.Errorf("bad url: isErr=%v text=%q", isErr, text)
	}

	if text, isErr = callTool(t, h, map[string]any{}); !isErr {
		t.Errorf("missing url accepted: %s", text)
	}
}
