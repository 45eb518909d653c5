package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/savings/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "savings",
	Short: "Government savings table scraper",
	Long: "Renders the public savings table, expands it fully, enriches leading records " +
		"from their contract detail pages and writes a timestamped CSV or XLSX file.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		initLogger(cfg.Log)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("savings failed", "error", err)
		os.Exit(1)
	}
}

// validate checks cfg after flags have been applied.
func validate() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(lc config.LogConfig) {
	slog.SetDefault(newLogger(lc, os.Stdout))
}

// newLogger builds the logger initLogger installs, writing to w.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
