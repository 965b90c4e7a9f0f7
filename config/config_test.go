package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func writeAdapterYAML(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Scraper.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", cfg.Scraper.Concurrency)
	}
	if cfg.Scraper.MaxPerDealer != 100 {
		t.Errorf("max per dealer = %d, want 100", cfg.Scraper.MaxPerDealer)
	}
	if cfg.Scraper.StaleAfter != 72*time.Hour {
		t.Errorf("stale after = %s, want 72h", cfg.Scraper.StaleAfter)
	}
	if len(cfg.Adapters) != 0 {
		t.Errorf("expected no adapters without a config dir, got %d", len(cfg.Adapters))
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCRAPE_CONCURRENCY", "7")
	t.Setenv("SCRAPE_DEALER_TIMEOUT", "90s")
	t.Setenv("SCRAPE_RATE_PER_SEC", "0.5")
	t.Setenv("SCRAPE_INTERVAL", "4h")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scraper.Concurrency != 7 {
		t.Errorf("concurrency = %d, want 7", cfg.Scraper.Concurrency)
	}
	if cfg.Scraper.DealerTimeout != 90*time.Second {
		t.Errorf("dealer timeout = %s, want 90s", cfg.Scraper.DealerTimeout)
	}
	if cfg.Scraper.RatePerSec != 0.5 {
		t.Errorf("rate = %v, want 0.5", cfg.Scraper.RatePerSec)
	}
	if cfg.Scheduler.Interval != 4*time.Hour {
		t.Errorf("interval = %s, want 4h", cfg.Scheduler.Interval)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("http addr = %q, want :9090", cfg.HTTP.Addr)
	}
}

func TestLoadAdapterConfigs(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeAdapterYAML(t, filepath.Join(dir, "config", "adapters"), "smalltown.yaml", `
id: smalltown
name: Smalltown Motors
handler: html
host_patterns:
  - "*.smalltownmotors.example"
rate_limit_ms: 500
selectors:
  container: ".vehicle-card"
  vin: ".vin"
  vin_attr: "data-vin"
  title: ".vehicle-title"
  price: ".price"
  next_page: ".next-page"
`)
	writeAdapterYAML(t, filepath.Join(dir, "config", "adapters"), "notes.txt", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	adapter, ok := cfg.Adapters["smalltown"]
	if !ok {
		t.Fatalf("adapter not loaded: %v", cfg.Adapters)
	}
	if adapter.Handler != "html" {
		t.Errorf("handler = %q", adapter.Handler)
	}
	if adapter.RateLimitMS != 500 {
		t.Errorf("rate limit = %d", adapter.RateLimitMS)
	}
	if adapter.Selectors.Container != ".vehicle-card" || adapter.Selectors.VINAttr != "data-vin" {
		t.Errorf("selectors not parsed: %+v", adapter.Selectors)
	}
	if len(adapter.HostPatterns) != 1 {
		t.Errorf("host patterns = %v", adapter.HostPatterns)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeAdapterYAML(t, filepath.Join(dir, "config", "adapters"), "broken.yaml", "{not yaml: [")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed adapter config")
	}
}
