package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/savings/models"
)

// pollInterval is how often run status is checked.
var pollInterval = 2 * time.Second

func main() {
	apiURL := os.Getenv("SAVINGS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SAVINGS_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SAVINGS_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(apiURL, apiKey)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"savings",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	runTool := mcp.NewTool("run_savings_scrape",
		mcp.WithDescription("Scrape the government savings table end to end: expand every row, enrich leading records from their contract detail pages and write a CSV or XLSX file. Returns the run report with the total savings."),
		mcp.WithString("url",
			mcp.Description("Source page URL (default: the server's configured savings page)"),
		),
		mcp.WithNumber("enrich_limit",
			mcp.Description("Number of leading records to enrich from detail pages; 0 enriches all (default: server setting, usually 10)"),
		),
		mcp.WithString("format",
			mcp.Description("Output file format: 'csv' (default) or 'xlsx'"),
			mcp.Enum("csv", "xlsx"),
		),
	)
	s.AddTool(runTool, handleRunScrape(apiURL, apiKey))

	detailTool := mcp.NewTool("fetch_detail",
		mcp.WithDescription("Fetch one contract detail page and return its label/value pairs as JSON."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The detail page URL"),
		),
		mcp.WithNumber("max_age_ms",
			mcp.Description("Accept a cached result up to this age in milliseconds (default: 0, always fetch)"),
		),
	)
	s.AddTool(detailTool, handleFetchDetail(apiURL, apiKey))

	return s
}

// apiPost sends a POST request to the savings API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollRun polls a run until it leaves the processing state or ctx ends.
func pollRun(ctx context.Context, client *http.Client, apiURL, apiKey, id string) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/runs/"+id, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status models.RunStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != models.RunStatusProcessing {
				return &status, nil
			}
		}
	}
}

func handleRunScrape(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]any{}
		if u := request.GetString("url", ""); u != "" {
			payload["url"] = u
		}
		if _, ok := request.GetArguments()["enrich_limit"]; ok {
			payload["enrich_limit"] = request.GetInt("enrich_limit", 0)
		}
		if f := request.GetString("format", ""); f != "" {
			payload["format"] = f
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/runs", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		var started models.RunResponse
		if err := json.Unmarshal(respBody, &started); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if started.ID == "" {
			return mcp.NewToolResultError(errorText("run could not be started", started.Error)), nil
		}

		status, err := pollRun(ctx, client, apiURL, apiKey, started.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
		}
		if status.Status != models.RunStatusCompleted || status.Report == nil {
			return mcp.NewToolResultError(errorText("run "+status.ID+" failed", status.Error)), nil
		}

		return mcp.NewToolResultText(formatReport(status.ID, status.Report)), nil
	}
}

func handleFetchDetail(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := models.DetailRequest{URL: url, MaxAge: request.GetInt("max_age_ms", 0)}
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/detail", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("detail request failed: %v", err)), nil
		}

		var detail models.DetailResponse
		if err := json.Unmarshal(respBody, &detail); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse detail response: %v", err)), nil
		}
		if !detail.Success {
			return mcp.NewToolResultError(errorText("detail fetch failed", detail.Error)), nil
		}
		if detail.Pairs == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No label/value pairs found at %s", detail.URL)), nil
		}

		data, err := json.MarshalIndent(detail.Data, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format pairs: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Source: %s\nPairs: %d\n\n%s", detail.URL, detail.Pairs, data)), nil
	}
}

func errorText(fallback string, e *models.ErrorDetail) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func formatReport(id string, r *models.RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s completed\n\n", id)
	fmt.Fprintf(&sb, "Source: %s\n", r.SourceURL)
	fmt.Fprintf(&sb, "Expansions: %d\n", r.Expansions)
	fmt.Fprintf(&sb, "Records: %d (skipped %d marker, %d short rows)\n",
		r.RecordsExtracted, r.SkippedMarkerRows, r.SkippedShortRows)
	fmt.Fprintf(&sb, "Enriched: %d of %d eligible (%d candidates)\n",
		r.Enriched, r.Eligible, r.EnrichmentCandidates)
	fmt.Fprintf(&sb, "Output: %s (%s)\n", r.OutputPath, r.Format)
	fmt.Fprintf(&sb, "Total savings: $%.2f billion\n", r.TotalSavedBillions)
	return sb.String()
}
