package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/savings/config"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "serve"} {
		if !names[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}

func TestRunCommandFlags(t *testing.T) {
	for _, name := range []string{"url", "limit", "format", "workers", "delay", "out-dir"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("run command missing --%s", name)
		}
	}
	if got := serveCmd.Flags().Lookup("port").DefValue; got != "0" {
		t.Errorf("--port default = %q, want 0", got)
	}
}

func TestApplyRunFlags(t *testing.T) {
	cfg = config.Load()
	cfg.Enrich.Limit = 10
	cfg.Enrich.Delay = 2 * time.Second

	if err := runCmd.Flags().Parse([]string{
		"--url", "https://mirror.example/savings",
		"--limit", "0",
		"--format", "xlsx",
		"--delay", "250ms",
		"--out-dir", "/tmp/out",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := applyRunFlags(runCmd); err != nil {
		t.Fatalf("applyRunFlags: %v", err)
	}

	if cfg.Loader.SourceURL != "https://mirror.example/savings" {
		t.Errorf("SourceURL = %q", cfg.Loader.SourceURL)
	}
	if cfg.Enrich.Limit != 0 {
		t.Errorf("Limit = %d, want 0", cfg.Enrich.Limit)
	}
	if cfg.Output.Format != "xlsx" || cfg.Output.Dir != "/tmp/out" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Enrich.Delay != 250*time.Millisecond {
		t.Errorf("Delay = %s", cfg.Enrich.Delay)
	}
	if cfg.Enrich.Workers != config.Load().Enrich.Workers {
		t.Errorf("unset --workers changed Workers to %d", cfg.Enrich.Workers)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantJSON  bool
		wantDebug bool
	}{
		{"default json info", config.LogConfig{}, true, false},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, false, true},
		{"json warn", config.LogConfig{Level: "warn", Format: "json"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tt.cfg, &buf)

			logger.Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			logger.Error("run failed", "code", "TABLE_NOT_FOUND")
			line := strings.TrimSpace(buf.String())
			if isJSON := json.Valid([]byte(line)); isJSON != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v: %s", isJSON, tt.wantJSON, line)
			}
			if !strings.Contains(line, "TABLE_NOT_FOUND") {
				t.Errorf("attribute missing: %s", line)
			}
		})
	}
}
