package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/savings/fetcher"
	"github.com/use-agent/savings/pipeline"
	"github.com/use-agent/savings/scraper"
	"github.com/use-agent/savings/sink"
)

var (
	runURL     string
	runLimit   int
	runFormat  string
	runWorkers int
	runOutDir  string
	runDelay   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the savings table once and write the output file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunFlags(cmd); err != nil {
			return err
		}
		if err := validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sc, err := scraper.New(cfg.Browser, cfg.Loader)
		if err != nil {
			return err
		}
		svc := pipeline.NewService(sc, fetcher.New(cfg.Fetch), cfg)

		slog.Info("run starting",
			"url", cfg.Loader.SourceURL,
			"enrich_limit", cfg.Enrich.Limit,
			"workers", cfg.Enrich.Workers,
			"format", cfg.Output.Format,
		)

		res, err := svc.Execute(ctx, pipeline.Options{})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		preview, err := sink.Preview(res.Records, cfg.Output.PreviewRows)
		if err != nil {
			slog.Warn("preview rendering failed", "error", err)
		} else if preview != "" {
			fmt.Fprintln(out, preview)
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Wrote %d records to %s\n", len(res.Records), res.Report.OutputPath)
		fmt.Fprintln(out, sink.Summarize(res.Records).String())
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runURL, "url", "", "source page URL (default from SAVINGS_SOURCE_URL)")
	f.IntVar(&runLimit, "limit", -1, "number of leading records to enrich, 0 for all (default from SAVINGS_ENRICH_LIMIT)")
	f.StringVar(&runFormat, "format", "", "output format: csv or xlsx")
	f.IntVar(&runWorkers, "workers", 0, "concurrent detail fetches; 1 keeps the sequential walk")
	f.DurationVar(&runDelay, "delay", 0, "pause between detail fetches, e.g. 2s")
	f.StringVar(&runOutDir, "out-dir", "", "directory for the output file")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays explicitly set flags onto cfg.
func applyRunFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("url") {
		cfg.Loader.SourceURL = runURL
	}
	if f.Changed("limit") {
		if runLimit < 0 {
			return fmt.Errorf("--limit must be >= 0, got %d", runLimit)
		}
		cfg.Enrich.Limit = runLimit
	}
	if f.Changed("format") {
		cfg.Output.Format = runFormat
	}
	if f.Changed("workers") {
		cfg.Enrich.Workers = runWorkers
	}
	if f.Changed("delay") {
		cfg.Enrich.Delay = runDelay
	}
	if f.Changed("out-dir") {
		cfg.Output.Dir = runOutDir
	}
	return nil
}
