package config_test

import (
	"path/filepath"
	"slices"
	"testing"
	"time"

	"relaydl/internal/config"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if cfg.Poll.Interval != 750*time.Millisecond {
		t.Errorf("expected 750ms poll interval, got %s", cfg.Poll.Interval)
	}

	if cfg.Poll.MaxFailures != 20 {
		t.Errorf("expected 20 max failures, got %d", cfg.Poll.MaxFailures)
	}

	if cfg.Remote.BaseURL != "http://localhost:5000" {
		t.Errorf("unexpected base url %q", cfg.Remote.BaseURL)
	}

	if !filepath.IsAbs(cfg.Dir.Downloads) {
		t.Errorf("expected absolute path, got %s", cfg.Dir.Downloads)
	}

	if len(cfg.Proxy.Proxies) != 0 {
		t.Errorf("expected no proxies, got %v", cfg.Proxy.Proxies)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("RELAYDL_REMOTE_BASE_URL", "https://convert.example.com/api/")
	t.Setenv("RELAYDL_POLL_INTERVAL", "1s")
	t.Setenv("RELAYDL_POLL_MAX_FAILURES", "3")
	t.Setenv("RELAYDL_DIR_DOWNLOAD", "./data/out")
	t.Setenv("RELAYDL_PROXY_LIST", " socks5h://a:1080, ,http://b:8080 ")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if cfg.Remote.BaseURL != "https://convert.example.com/api" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Remote.BaseURL)
	}

	if cfg.Poll.Interval != time.Second {
		t.Errorf("expected 1s poll interval, got %s", cfg.Poll.Interval)
	}

	if cfg.Poll.MaxFailures != 3 {
		t.Errorf("expected 3 max failures, got %d", cfg.Poll.MaxFailures)
	}

	if !filepath.IsAbs(cfg.Dir.Downloads) || filepath.Base(cfg.Dir.Downloads) != "out" {
		t.Errorf("unexpected downloads dir %q", cfg.Dir.Downloads)
	}

	want := []string{"socks5h://a:1080", "http://b:8080"}
	if !slices.Equal(cfg.Proxy.Proxies, want) {
		t.Errorf("expected proxies %v, got %v", want, cfg.Proxy.Proxies)
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero interval", "RELAYDL_POLL_INTERVAL", "0s"},
		{"zero max failures", "RELAYDL_POLL_MAX_FAILURES", "0"},
		{"bad duration", "RELAYDL_POLL_TICK_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := config.New(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
