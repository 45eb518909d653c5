package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
)

// fakeFetcher returns canned mappings and records every requested URL.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]models.DetailMapping
	calls   []string
	latency func(url string) time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) models.DetailMapping {
	if f.latency != nil {
		time.Sleep(f.latency(url))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return f.pages[url]
}

func mapping(pairs ...string) models.DetailMapping {
	var m models.DetailMapping
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func TestEligible(t *testing.T) {
	tests := []struct {
		link, domain string
		want         bool
	}{
		{"https://www.fpds.gov/ezsearch?q=1", "fpds.gov", true},
		{"https://WWW.FPDS.GOV/x", "fpds.gov", true},
		{"https://example.com/fpds.gov", "fpds.gov", true},
		{"https://example.com/x", "fpds.gov", false},
		{"", "fpds.gov", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := Eligible(tt.link, tt.domain); got != tt.want {
			t.Errorf("Eligible(%q, %q) = %v, want %v", tt.link, tt.domain, got, tt.want)
		}
	}
}

func TestEnrichSequential(t *testing.T) {
	f := &fakeFetcher{pages: map[string]models.DetailMapping{
		"https://fpds.gov/a": mapping("Vendor", "ACME", "PIID", "1"),
		"https://fpds.gov/b": {},
	}}
	o := New(f, config.EnrichConfig{Domain: "fpds.gov", Delay: 2 * time.Second, Workers: 1})

	var slept []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	input := []models.Record{
		{Agency: "A", Link: "https://fpds.gov/a"},
		{Agency: "B", Link: "https://example.com/receipt"},
		{Agency: "C", Link: ""},
		{Agency: "D", Link: "https://fpds.gov/b"},
	}

	out, stats := o.Enrich(context.Background(), input)

	if out[0].DetailData == nil || *out[0].DetailData != `{"Vendor":"ACME","PIID":"1"}` {
		t.Errorf("record A detail = %v", out[0].DetailData)
	}
	for i := 1; i < 4; i++ {
		if out[i].DetailData != nil {
			t.Errorf("record %d should carry the absence marker, got %q", i, *out[i].DetailData)
		}
	}
	if input[0].DetailData != nil {
		t.Error("input slice was modified")
	}

	if len(f.calls) != 2 || f.calls[0] != "https://fpds.gov/a" || f.calls[1] != "https://fpds.gov/b" {
		t.Errorf("fetch calls = %v, want only the eligible links in order", f.calls)
	}
	if len(slept) != 4 {
		t.Errorf("slept %d times, want one pause per record", len(slept))
	}
	for _, d := range slept {
		if d != 2*time.Second {
			t.Errorf("pause = %s, want 2s", d)
		}
	}

	want := Stats{Processed: 4, Eligible: 2, Enriched: 1, Skipped: 2, Empty: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestEnrichSequentialCancel(t *testing.T) {
	f := &fakeFetcher{pages: map[string]models.DetailMapping{}}
	o := New(f, config.EnrichConfig{Domain: "fpds.gov", Delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pauses := 0
	o.sleep = func(ctx context.Context, _ time.Duration) error {
		pauses++
		if pauses == 2 {
			cancel()
		}
		return ctx.Err()
	}

	records := make([]models.Record, 5)
	for i := range records {
		records[i].Link = fmt.Sprintf("https://fpds.gov/%d", i)
	}

	out, stats := o.Enrich(ctx, records)
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
	if stats.Processed != 2 {
		t.Errorf("Processed = %d, want 2", stats.Processed)
	}
	if len(f.calls) != 2 {
		t.Errorf("fetch calls = %d, want 2", len(f.calls))
	}
}

func TestEnrichPooledKeepsOrder(t *testing.T) {
	const n = 20
	f := &fakeFetcher{
		pages: make(map[string]models.DetailMapping),
		latency: func(url string) time.Duration {
			// Later records finish first.
			var i int
			fmt.Sscanf(url[strings.LastIndex(url, "/")+1:], "%d", &i)
			return time.Duration(n-i) * time.Millisecond
		},
	}

	records := make([]models.Record, n)
	for i := range records {
		if i%5 == 4 {
			records[i].Link = fmt.Sprintf("https://example.com/%d", i)
			continue
		}
		link := fmt.Sprintf("https://host%d.fpds.gov/%d", i%3, i)
		records[i].Link = link
		f.pages[link] = mapping("index", fmt.Sprint(i))
	}

	o := New(f, config.EnrichConfig{Domain: "fpds.gov", Delay: 0, Workers: 4})
	out, stats := o.Enrich(context.Background(), records)

	for i, rec := range out {
		if i%5 == 4 {
			if rec.DetailData != nil {
				t.Errorf("record %d should be skipped", i)
			}
			continue
		}
		want := fmt.Sprintf(`{"index":"%d"}`, i)
		if rec.DetailData == nil || *rec.DetailData != want {
			t.Errorf("record %d detail = %v, want %s", i, rec.DetailData, want)
		}
	}
	if stats.Enriched != 16 || stats.Skipped != 4 || stats.Processed != 20 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPacer(t *testing.T) {
	p := NewPacer(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx, "a.fpds.gov"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := p.Wait(ctx, "a.fpds.gov"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("second token for the same host came after %s, want about 100ms", elapsed)
	}

	if err := p.Wait(ctx, "b.fpds.gov"); err != nil {
		t.Fatalf("other host wait: %v", err)
	}
	if p.Hosts() != 2 {
		t.Errorf("Hosts() = %d, want 2", p.Hosts())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Wait(ctx, "c.fpds.gov")
	if err := p.Wait(cancelled, "c.fpds.gov"); err == nil {
		t.Error("Wait with a cancelled context should fail")
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("https://WWW.FPDS.gov:443/x"); got != "www.fpds.gov" {
		t.Errorf("hostOf = %q", got)
	}
	if got := hostOf("not a url"); got != "not a url" {
		t.Errorf("hostOf fallback = %q", got)
	}
}
