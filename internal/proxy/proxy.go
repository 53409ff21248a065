// Package proxy selects outbound proxies for requests to the remote service.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"relaydl/internal/errs"
	"relaydl/internal/observability"
)

const (
	defaultSOCKSPort = "1080"
	defaultHTTPPort  = "8080"
)

// Manager handles proxy selection and health checking.
type Manager struct {
	log           *slog.Logger
	metrics       *observability.Metrics
	proxies       []*url.URL
	healthCheck   bool
	healthTimeout time.Duration
}

// New creates a new proxy manager from already split proxy URLs.
func New(log *slog.Logger, proxyURLs []string, healthCheck bool, healthTimeout time.Duration,
	metrics *observability.Metrics) (*Manager, error) {
	proxies := make([]*url.URL, 0, len(proxyURLs))

	for _, p := range proxyURLs {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", p, err)
		}

		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q in %q", u.Scheme, p)
		}

		proxies = append(proxies, u)
	}

	return &Manager{
		log:           log.With(slog.String("package", "proxy")),
		metrics:       metrics,
		proxies:       proxies,
		healthCheck:   healthCheck,
		healthTimeout: healthTimeout,
	}, nil
}

// GetProxy returns a random healthy proxy, or nil if no proxies are configured.
func (m *Manager) GetProxy(ctx context.Context) (*url.URL, error) {
	if len(m.proxies) == 0 {
		return nil, nil
	}

	if !m.healthCheck {
		return m.selectRandom(), nil
	}

	// shuffle and try each once
	for _, idx := range rand.Perm(len(m.proxies)) {
		proxy := m.proxies[idx]
		if m.checkHealth(ctx, proxy) {
			return proxy, nil
		}

		m.log.WarnContext(ctx, "proxy unhealthy", slog.String("proxy", proxy.Redacted()))
		m.metrics.RecordProxyFailure(proxy.Redacted())
	}

	return nil, errs.ErrNoProxiesAvailable
}

// ProxyFunc returns a function suitable for http.Transport.Proxy.
func (m *Manager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		proxy, err := m.GetProxy(req.Context())
		if err != nil {
			return nil, err
		}

		if proxy != nil {
			m.metrics.RecordProxyRequest(proxy.Redacted())
		}

		return proxy, nil
	}
}

func (m *Manager) selectRandom() *url.URL {
	return m.proxies[rand.IntN(len(m.proxies))]
}

// checkHealth checks if a proxy is reachable over TCP.
func (m *Manager) checkHealth(ctx context.Context, proxy *url.URL) bool {
	host := proxy.Host
	if proxy.Port() == "" {
		switch proxy.Scheme {
		case "socks5", "socks5h":
			host = net.JoinHostPort(proxy.Hostname(), defaultSOCKSPort)
		default:
			host = net.JoinHostPort(proxy.Hostname(), defaultHTTPPort)
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(checkCtx, "tcp", host)
	if err != nil {
		return false
	}

	conn.Close()

	return true
}

// Count returns the number of configured proxies.
func (m *Manager) Count() int {
	return len(m.proxies)
}
