// entry point of the application
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaydl/internal/artifact"
	"relaydl/internal/cli"
	"relaydl/internal/config"
	"relaydl/internal/entity"
	httprouter "relaydl/internal/infrastructure/delivery/http"
	"relaydl/internal/observability"
	"relaydl/internal/proxy"
	"relaydl/internal/remote"
	"relaydl/internal/resolver"
	"relaydl/internal/session"
	"relaydl/internal/storage"
	httpserver "relaydl/pkg/http/server"
	"relaydl/pkg/logger"
	"relaydl/pkg/ptr"

	"github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"
)

type infoCmd struct {
	URL string `arg:"positional,required" help:"media URL"`
}

type getCmd struct {
	URL    string `arg:"positional,required" help:"media URL"`
	Format string `arg:"-f,--format" help:"format id from 'relaydl info'; empty picks the best stream"`
	Audio  bool   `arg:"-a,--audio" help:"download audio only"`
	Title  string `arg:"-t,--title" help:"file name to use when the service sends none"`
}

type serveCmd struct {
	Port string `arg:"-p,--port" help:"listen address, e.g. :8080"`
}

type args struct {
	Info  *infoCmd  `arg:"subcommand:info" help:"show title, duration and formats of a media URL"`
	Get   *getCmd   `arg:"subcommand:get" help:"convert a media URL on the service and save the result"`
	Serve *serveCmd `arg:"subcommand:serve" help:"run the local HTTP API"`

	Service  string `arg:"-s,--service" help:"conversion service base URL (RELAYDL_REMOTE_BASE_URL)"`
	Output   string `arg:"-o,--output" help:"download directory (RELAYDL_DIR_DOWNLOAD)"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error"`
}

func (args) Description() string {
	return "relaydl resolves media URLs and downloads them through a remote conversion service.\n"
}

type app struct {
	log      *slog.Logger
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *observability.Metrics
	resolver *resolver.Resolver
	ctrl     *session.Controller
}

func main() {
	var a args

	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand: info, get or serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, a)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "relaydl:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, a args) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config new: %w", err)
	}

	applyFlags(cfg, a)

	relay, err := newApp(ctx, cfg, a.Serve != nil)
	if err != nil {
		return err
	}
	defer relay.ctrl.Close()

	switch {
	case a.Info != nil:
		return relay.info(ctx, a.Info)
	case a.Get != nil:
		return relay.get(ctx, a.Get)
	default:
		return relay.serve(ctx)
	}
}

// applyFlags lets command line flags override the environment.
func applyFlags(cfg *config.Config, a args) {
	if a.Service != "" {
		cfg.Remote.BaseURL = strings.TrimRight(a.Service, "/")
	}

	if a.Output != "" {
		cfg.Dir.Downloads = a.Output
		cfg.Dir.SetAbsPaths() //nolint:errcheck // an unresolvable path fails later when storage creates it
	}

	if a.LogLevel != "" {
		cfg.App.LogLevel = a.LogLevel
	}

	if a.Serve != nil && a.Serve.Port != "" {
		cfg.HTTP.Port = a.Serve.Port
	}
}

func newApp(ctx context.Context, cfg *config.Config, server bool) (*app, error) {
	logOpts := &logger.Options{AddSource: server, Level: cfg.App.LogLevel}

	// Terminal commands keep stdout for their own output and stay quiet unless asked.
	if !server {
		logOpts.Writer = os.Stderr

		if _, ok := os.LookupEnv("RELAYDL_APP_LOG_LEVEL"); !ok && cfg.App.LogLevel == "info" {
			logOpts.Level = "warn"
		}
	}

	log, err := logger.New(logOpts)
	if err != nil {
		log.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := observability.New(registry)

	var clientOpts []remote.Option

	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr, err := proxy.New(log, cfg.Proxy.Proxies, cfg.Proxy.HealthCheck, cfg.Proxy.HealthTimeout, metrics)
		if err != nil {
			return nil, fmt.Errorf("proxy new: %w", err)
		}

		clientOpts = append(clientOpts, remote.WithProxy(proxyMgr.ProxyFunc()))

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", proxyMgr.Count()))
	}

	client := remote.New(log, cfg, metrics, clientOpts...)

	stg, err := storage.New(ctx, log, cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("storage new: %w", err)
	}

	retriever := artifact.New(log, client, stg, cfg.Remote.DownloadTimeout)

	return &app{
		log:      log,
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
		resolver: resolver.New(log, client, metrics),
		ctrl:     session.New(ctx, log, cfg, client, retriever, metrics),
	}, nil
}

func (a *app) info(ctx context.Context, cmd *infoCmd) error {
	meta, err := a.resolver.Resolve(ctx, cmd.URL)
	if err != nil {
		return err
	}

	return cli.Metadata(os.Stdout, meta)
}

func (a *app) get(ctx context.Context, cmd *getCmd) error {
	title := cmd.Title

	if title == "" {
		meta, err := a.resolver.Resolve(ctx, cmd.URL)
		if err != nil {
			return err
		}

		title = meta.Title
		fmt.Fprintf(os.Stdout, "%s (%s)\n", meta.Title, meta.FormattedDuration)
	}

	updates, cancel := a.ctrl.Subscribe()
	defer cancel()

	err := a.ctrl.Start(ctx, entityRequest(cmd, title))
	if err != nil {
		return err
	}

	progress := cli.NewProgress(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-updates:
			if !ok {
				return errors.New("download interrupted")
			}

			progress.Update(job)

			if job.Phase.Terminal() {
				return a.ctrl.Err()
			}
		}
	}
}

func entityRequest(cmd *getCmd, title string) entity.StartRequest {
	return entity.StartRequest{
		URL:      cmd.URL,
		FormatID: ptr.NonZero(strings.TrimSpace(cmd.Format)),
		IsAudio:  cmd.Audio,
		Title:    title,
	}
}

func (a *app) serve(ctx context.Context) error {
	router := httprouter.New(a.log, a.cfg, a.resolver, a.ctrl, a.metrics, a.registry)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            a.cfg.HTTP.Port,
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
		WriteTimeout:    a.cfg.HTTP.HandlerTimeout + 5*time.Second,
	})

	a.log.InfoContext(ctx, "relaydl started",
		slog.String("port", a.cfg.HTTP.Port), slog.String("service", a.cfg.Remote.BaseURL))

	var serveErr error

	// Waiting for shutdown signal
	select {
	case <-ctx.Done():
	case serveErr = <-httpSrv.Notify():
		a.log.ErrorContext(ctx, "http server stopped", slog.Any("error", serveErr))
	}

	a.ctrl.Close()

	err := httpSrv.Shutdown()
	if err != nil {
		a.log.Error("http server shutdown", slog.Any("error", err))
	}

	a.log.InfoContext(ctx, "relaydl shut down gracefully")

	return serveErr
}
