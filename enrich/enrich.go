// Package enrich attaches detail-page data to savings records.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
)

// DetailFetcher retrieves the label/value pairs behind a link. It must not
// fail: problems are reported as an empty mapping.
type DetailFetcher interface {
	Fetch(ctx context.Context, url string) models.DetailMapping
}

// Stats counts enrichment outcomes.
type Stats struct {
	Processed int // records visited before finishing or cancellation
	Eligible  int // links matching the domain filter
	Enriched  int // records that received detail data
	Skipped   int // links not matching the domain filter
	Empty     int // eligible links that produced no pairs
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeEnriched
	outcomeEmpty
)

// Orchestrator walks records, fetches detail pages for eligible links and
// paces requests.
type Orchestrator struct {
	fetcher DetailFetcher
	domain  string
	delay   time.Duration
	workers int

	// sleep pauses between records in sequential mode.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator.
func New(f DetailFetcher, cfg config.EnrichConfig) *Orchestrator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		fetcher: f,
		domain:  cfg.Domain,
		delay:   cfg.Delay,
		workers: workers,
		sleep:   sleepCtx,
	}
}

// Eligible reports whether link should be enriched: it must be non-empty and
// contain domain, ignoring case.
func Eligible(link, domain string) bool {
	if link == "" {
		return false
	}
	return strings.Contains(strings.ToLower(link), strings.ToLower(domain))
}

// Enrich returns a copy of records with DetailData set where a detail page
// produced pairs. The input slice is not modified. Cancelling ctx stops the
// walk; records not reached keep the absence marker.
func (o *Orchestrator) Enrich(ctx context.Context, records []models.Record) ([]models.Record, Stats) {
	out := make([]models.Record, len(records))
	copy(out, records)

	var stats Stats
	if o.workers > 1 {
		stats = o.enrichPooled(ctx, out)
	} else {
		stats = o.enrichSequential(ctx, out)
	}

	slog.Info("enrichment finished",
		"records", len(out),
		"processed", stats.Processed,
		"eligible", stats.Eligible,
		"enriched", stats.Enriched,
		"empty", stats.Empty,
		"skipped", stats.Skipped,
	)
	return out, stats
}

// enrichSequential visits records in order, one fetch at a time, pausing
// for the configured delay after every record.
func (o *Orchestrator) enrichSequential(ctx context.Context, out []models.Record) Stats {
	var stats Stats
	for i := range out {
		if ctx.Err() != nil {
			slog.Warn("enrichment cancelled", "processed", stats.Processed, "remaining", len(out)-i)
			break
		}

		slog.Info("processing record", "index", i+1, "total", len(out), "link", out[i].Link)
		stats.add(o.enrichOne(ctx, &out[i]))

		if err := o.sleep(ctx, o.delay); err != nil {
			slog.Warn("enrichment cancelled", "processed", stats.Processed, "remaining", len(out)-i-1)
			break
		}
	}
	return stats
}

// enrichPooled fetches eligible records on a bounded pool. Requests to the
// same host are spaced by the delay; results land at their own index so the
// output order matches the input order.
func (o *Orchestrator) enrichPooled(ctx context.Context, out []models.Record) Stats {
	var (
		stats Stats
		mu    sync.Mutex
		wg    sync.WaitGroup
	)
	pacer := NewPacer(o.delay)
	sem := make(chan struct{}, o.workers)

dispatch:
	for i := range out {
		if !Eligible(out[i].Link, o.domain) {
			slog.Info("skipping non-matching link", "index", i+1, "link", out[i].Link)
			mu.Lock()
			stats.add(outcomeSkipped)
			mu.Unlock()
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			slog.Warn("enrichment cancelled", "dispatched", i)
			break dispatch
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := pacer.Wait(ctx, hostOf(out[i].Link)); err != nil {
				return
			}
			res := o.enrichOne(ctx, &out[i])

			mu.Lock()
			stats.add(res)
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	slog.Debug("pooled enrichment drained", "workers", o.workers, "hosts", pacer.Hosts())
	return stats
}

// enrichOne fetches and attaches detail data for a single record.
func (o *Orchestrator) enrichOne(ctx context.Context, rec *models.Record) outcome {
	if !Eligible(rec.Link, o.domain) {
		slog.Info("skipping non-matching link", "link", rec.Link, "domain", o.domain)
		return outcomeSkipped
	}

	pairs := o.fetcher.Fetch(ctx, rec.Link)
	if pairs.Len() == 0 {
		return outcomeEmpty
	}

	data, err := pairs.Serialize()
	if err != nil {
		slog.Warn("detail data serialization failed", "link", rec.Link, "error", err)
		return outcomeEmpty
	}
	rec.DetailData = &data
	return outcomeEnriched
}

func (s *Stats) add(o outcome) {
	s.Processed++
	switch o {
	case outcomeSkipped:
		s.Skipped++
	case outcomeEnriched:
		s.Eligible++
		s.Enriched++
	case outcomeEmpty:
		s.Eligible++
		s.Empty++
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
