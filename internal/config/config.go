// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App     App
	Remote  Remote
	Poll    Poll
	Dir     Dir
	Storage Storage
	HTTP    HTTP
	Proxy   Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"RELAYDL_APP_LOG_LEVEL" envDefault:"info"`
}

// Remote holds the conversion service endpoint configuration.
type Remote struct {
	BaseURL        string        `env:"RELAYDL_REMOTE_BASE_URL"        envDefault:"http://localhost:5000"`
	RequestTimeout time.Duration `env:"RELAYDL_REMOTE_REQUEST_TIMEOUT" envDefault:"60s"`
	// DownloadTimeout bounds the artifact transfer, which can be large.
	DownloadTimeout time.Duration `env:"RELAYDL_REMOTE_DOWNLOAD_TIMEOUT" envDefault:"30m"`
	UserAgent       string        `env:"RELAYDL_REMOTE_USER_AGENT"       envDefault:"relaydl/1.0"`
}

// Poll holds progress polling configuration.
type Poll struct {
	Interval    time.Duration `env:"RELAYDL_POLL_INTERVAL"     envDefault:"750ms"`
	TickTimeout time.Duration `env:"RELAYDL_POLL_TICK_TIMEOUT" envDefault:"10s"`
	// MaxFailures is the number of consecutive failed ticks that ends a job.
	MaxFailures int `env:"RELAYDL_POLL_MAX_FAILURES" envDefault:"20"`
	// MaxDuration bounds a whole job; 0 disables the deadline.
	MaxDuration time.Duration `env:"RELAYDL_POLL_MAX_DURATION" envDefault:"2h"`
}

// Dir holds local directory paths.
type Dir struct {
	Downloads string `env:"RELAYDL_DIR_DOWNLOAD" envDefault:"./downloads"` // artifacts saved here
}

// Storage holds local storage maintenance configuration.
type Storage struct {
	// PartialTTL is how long an orphaned partial file is kept.
	PartialTTL      time.Duration `env:"RELAYDL_STORAGE_PARTIAL_TTL"      envDefault:"24h"`
	CleanupInterval time.Duration `env:"RELAYDL_STORAGE_CLEANUP_INTERVAL" envDefault:"1h"`
}

// HTTP holds local API server configuration.
type HTTP struct {
	Port            string        `env:"RELAYDL_HTTP_PORT"             envDefault:":8080"`
	HandlerTimeout  time.Duration `env:"RELAYDL_HTTP_HANDLER_TIMEOUT"  envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"RELAYDL_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Proxy holds outbound proxy configuration.
type Proxy struct {
	// List is a comma-separated list of proxy URLs (http, https, socks5)
	List string `env:"RELAYDL_PROXY_LIST" envDefault:""`
	// HealthCheck enables a TCP reachability check before a proxy is used
	HealthCheck   bool          `env:"RELAYDL_PROXY_HEALTH_CHECK"   envDefault:"true"`
	HealthTimeout time.Duration `env:"RELAYDL_PROXY_HEALTH_TIMEOUT" envDefault:"5s"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	return nil
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	cfg.Remote.BaseURL = strings.TrimRight(cfg.Remote.BaseURL, "/")
	cfg.Proxy.parseList()

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote base url is empty")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}

	if c.Poll.MaxFailures < 1 {
		return fmt.Errorf("poll max failures must be at least 1, got %d", c.Poll.MaxFailures)
	}

	return nil
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	p.Proxies = nil

	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
