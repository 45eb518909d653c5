package pipeline

import (
	"context"
	"fmt"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/enrich"
	"github.com/use-agent/savings/models"
	"github.com/use-agent/savings/sink"
)

// Options override configured defaults for a single run. Zero values keep
// the configuration.
type Options struct {
	SourceURL   string
	EnrichLimit *int
	Format      string
}

// Service builds a fresh Pipeline for every run from long-lived parts.
type Service struct {
	loader  Loader
	fetcher enrich.DetailFetcher
	enrich  config.EnrichConfig
	output  config.OutputConfig
	source  string
}

// NewService creates a Service. cfg supplies the source URL and the
// enrichment and output defaults.
func NewService(loader Loader, f enrich.DetailFetcher, cfg *config.Config) *Service {
	return &Service{
		loader:  loader,
		fetcher: f,
		enrich:  cfg.Enrich,
		output:  cfg.Output,
		source:  cfg.Loader.SourceURL,
	}
}

// Execute runs the pipeline with opts applied.
func (s *Service) Execute(ctx context.Context, opts Options) (*Result, error) {
	source := s.source
	if opts.SourceURL != "" {
		source = opts.SourceURL
	}

	limit := s.enrich.Limit
	if opts.EnrichLimit != nil {
		if *opts.EnrichLimit < 0 {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("enrich limit must be >= 0, got %d", *opts.EnrichLimit), nil)
		}
		limit = *opts.EnrichLimit
	}

	outCfg := s.output
	if opts.Format != "" {
		outCfg.Format = opts.Format
	}
	if outCfg.Format != "csv" && outCfg.Format != "xlsx" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown output format %q", outCfg.Format), nil)
	}

	p := New(s.loader, enrich.New(s.fetcher, s.enrich), sink.NewWriter(outCfg), limit)
	return p.Run(ctx, source)
}
