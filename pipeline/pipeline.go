// Package pipeline runs one end-to-end scrape: load the table, extract
// records, enrich a prefix, write everything and summarise.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/savings/enrich"
	"github.com/use-agent/savings/extract"
	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/scraper"
	"github.com/use-agent/savings/sink"
)

// Loader renders the source page and returns its table rows.
type Loader interface {
	Load(ctx context.Context, url string) (*scraper.LoadResult, error)
}

// Enricher attaches detail data to records.
type Enricher interface {
	Enrich(ctx context.Context, records []models.Record) ([]models.Record, enrich.Stats)
}

// Output persists records.
type Output interface {
	Write(records []models.Record) (string, error)
	Format() string
}

// Pipeline wires the stages together.
type Pipeline struct {
	loader      Loader
	enricher    Enricher
	output      Output
	enrichLimit int
}

// New creates a Pipeline. enrichLimit is the number of leading records sent
// to enrichment; 0 sends all of them.
func New(loader Loader, enricher Enricher, output Output, enrichLimit int) *Pipeline {
	return &Pipeline{
		loader:      loader,
		enricher:    enricher,
		output:      output,
		enrichLimit: enrichLimit,
	}
}

// Result is what a run produced.
type Result struct {
	Report  *models.RunReport
	Records []models.Record
}

// Run executes the pipeline against sourceURL. Only loading and writing are
// fatal; detail failures surface as records without detail data.
func (p *Pipeline) Run(ctx context.Context, sourceURL string) (*Result, error) {
	totalStart := time.Now()
	report := &models.RunReport{SourceURL: sourceURL, Format: p.output.Format()}

	// ── 1. Load ──────────────────────────────────────────────────────
	loadStart := time.Now()
	loaded, err := p.loader.Load(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	report.Timing.LoadMs = time.Since(loadStart).Milliseconds()
	report.FinalURL = loaded.FinalURL
	report.Title = loaded.Title
	report.Expansions = loaded.Expansions
	slog.Info("rows found", "rows", len(loaded.Rows), "expansions", loaded.Expansions)

	// ── 2. Extract ───────────────────────────────────────────────────
	records, exStats := extract.Records(loaded.Rows)
	report.RowsSeen = exStats.Rows
	report.RecordsExtracted = exStats.Records
	report.SkippedMarkerRows = exStats.SkippedMarker
	report.SkippedShortRows = exStats.SkippedShort
	slog.Info("records extracted",
		"records", exStats.Records,
		"skipped_marker", exStats.SkippedMarker,
		"skipped_short", exStats.SkippedShort,
	)

	// ── 3. Enrich the prefix ─────────────────────────────────────────
	n := len(records)
	if p.enrichLimit > 0 && p.enrichLimit < n {
		n = p.enrichLimit
	}
	report.EnrichmentCandidates = n
	slog.Info("enriching records", "candidates", n, "total", len(records))

	enrichStart := time.Now()
	enriched, enStats := p.enricher.Enrich(ctx, records[:n])
	report.Timing.EnrichMs = time.Since(enrichStart).Milliseconds()
	report.Eligible = enStats.Eligible
	report.Enriched = enStats.Enriched

	// ── 4. Merge ─────────────────────────────────────────────────────
	merged := make([]models.Record, 0, len(records))
	merged = append(merged, enriched...)
	merged = append(merged, records[n:]...)

	// ── 5. Write ─────────────────────────────────────────────────────
	writeStart := time.Now()
	path, err := p.output.Write(merged)
	if err != nil {
		return nil, err
	}
	report.Timing.WriteMs = time.Since(writeStart).Milliseconds()
	report.OutputPath = path

	// ── 6. Summarise over every extracted record ─────────────────────
	summary := sink.Summarize(records)
	report.TotalSaved = summary.TotalSaved
	report.TotalSavedBillions = summary.Billions
	report.Timing.TotalMs = time.Since(totalStart).Milliseconds()

	slog.Info("run complete",
		"records", len(merged),
		"eligible", report.Eligible,
		"enriched", report.Enriched,
		"output", path,
		"summary", summary.String(),
	)

	return &Result{Report: report, Records: merged}, nil
}
