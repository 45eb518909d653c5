package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/savings/api"
	"github.com/use-agent/savings/api/handler"
	"github.com/use-agent/savings/cache"
	"github.com/use-agent/savings/fetcher"
	"github.com/use-agent/savings/pipeline"
	"github.com/use-agent/savings/scraper"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for runs and detail lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if err := validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("savings API starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"source", cfg.Loader.SourceURL,
		)

		// ── 1. Pipeline parts ───────────────────────────────────────────
		sc, err := scraper.New(cfg.Browser, cfg.Loader)
		if err != nil {
			return err
		}
		f := fetcher.New(cfg.Fetch)
		runs := handler.NewRunStore(ctx, pipeline.NewService(sc, f, cfg))

		// ── 2. Router ───────────────────────────────────────────────────
		router := api.NewRouter(runs, f, cfg, cache.New(cfg.Cache.MaxEntries), time.Now())

		// ── 3. HTTP server ──────────────────────────────────────────────
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{Addr: addr, Handler: router}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// ── 4. Graceful shutdown ────────────────────────────────────────
		select {
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
		}
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		slog.Info("savings API stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from SAVINGS_PORT)")
	rootCmd.AddCommand(serveCmd)
}
