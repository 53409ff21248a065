package proxy_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relaydl/internal/errs"
	"relaydl/internal/proxy"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		proxyURLs []string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "empty proxies",
			proxyURLs: nil,
			wantCount: 0,
		},
		{
			name:      "multiple proxies",
			proxyURLs: []string{"socks5h://127.0.0.1:1080", "http://127.0.0.1:8080"},
			wantCount: 2,
		},
		{
			name:      "invalid proxy URL",
			proxyURLs: []string{"not a valid url://:"},
			wantErr:   true,
		},
		{
			name:      "unsupported scheme",
			proxyURLs: []string{"ftp://127.0.0.1:21"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := proxy.New(newLogger(), tt.proxyURLs, true, time.Second, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)

				return
			}

			if err == nil && m.Count() != tt.wantCount {
				t.Errorf("New() count = %v, want %v", m.Count(), tt.wantCount)
			}
		})
	}
}

func TestGetProxyNoProxies(t *testing.T) {
	m, err := proxy.New(newLogger(), nil, true, time.Second, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := m.GetProxy(t.Context())
	if err != nil || got != nil {
		t.Errorf("GetProxy() = %v, %v; want nil, nil", got, err)
	}
}

func TestGetProxyHealthy(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m, err := proxy.New(newLogger(), []string{srv.URL}, true, time.Second, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := m.GetProxy(t.Context())
	if err != nil {
		t.Fatalf("GetProxy() error = %v", err)
	}

	if got.String() != srv.URL {
		t.Errorf("GetProxy() = %v, want %v", got, srv.URL)
	}
}

func TestGetProxyUnhealthy(t *testing.T) {
	// grab a free port and close it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	ln.Close()

	m, err := proxy.New(newLogger(), []string{"http://" + addr}, true, 200*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = m.GetProxy(t.Context())
	if !errors.Is(err, errs.ErrNoProxiesAvailable) {
		t.Errorf("expected ErrNoProxiesAvailable, got %v", err)
	}
}

func TestProxyFuncWithoutHealthCheck(t *testing.T) {
	m, err := proxy.New(newLogger(), []string{"socks5h://10.0.0.1:1080"}, false, time.Second, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)

	got, err := m.ProxyFunc()(req)
	if err != nil {
		t.Fatalf("ProxyFunc() error = %v", err)
	}

	if got == nil || got.Host != "10.0.0.1:1080" {
		t.Errorf("ProxyFunc() = %v, want socks5h://10.0.0.1:1080", got)
	}
}
