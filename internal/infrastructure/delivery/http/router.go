// Package httprouter serves the local HTTP API in front of the download controller.
package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/consts"
	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/infrastructure/delivery/http/middleware"
	"relaydl/internal/infrastructure/delivery/http/request"
	"relaydl/internal/infrastructure/delivery/http/response"
	"relaydl/internal/observability"
	"relaydl/pkg/urls"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolver resolves media URLs.
type Resolver interface {
	Resolve(ctx context.Context, url string) (entity.VideoMetadata, error)
}

// Jobs is the download controller.
type Jobs interface {
	Start(ctx context.Context, req entity.StartRequest) error
	Snapshot() entity.Job
	Subscribe() (<-chan entity.Job, func())
}

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	globalChain []func(http.Handler) http.Handler
	routeChain  []func(http.Handler) http.Handler
	isSubRouter bool

	resolver Resolver
	jobs     Jobs
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer

	// titles holds the last resolved URL and its title.
	titles *lastTitle
}

type lastTitle struct {
	mu    sync.Mutex
	url   string
	title string
}

func (l *lastTitle) set(url, title string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.url, l.title = url, title
}

func (l *lastTitle) get(url string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.url != url {
		return ""
	}

	return l.title
}

func New(log *slog.Logger, cfg *config.Config, resolver Resolver, jobs Jobs,
	metrics *observability.Metrics, gatherer prometheus.Gatherer,
) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		resolver: resolver,
		jobs:     jobs,
		metrics:  metrics,
		gatherer: gatherer,
		titles:   &lastTitle{},
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

// Group registers routes that share the middleware fn adds with Use.
func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		isSubRouter: true,
		routeChain:  slices.Clone(r.routeChain),
		ServeMux:    r.ServeMux,
	}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for _, middleware := range slices.Backward(r.routeChain) {
		h = middleware(h)
	}

	r.ServeMux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer(r.log),
		middleware.RequestID,
		middleware.Logger(r.log),
		middleware.Metrics(r.metrics),
	)
}

func (r *Router) SetRoutes() {
	r.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if r.gatherer != nil {
		r.Handle("GET /metrics", observability.Handler(r.gatherer))
	}

	r.Group(func(g *Router) {
		g.Use(middleware.Timeout(r.cfg.HTTP.HandlerTimeout))

		g.HandleFunc("POST /v1/videos/resolve", r.ResolveVideo)
		g.HandleFunc("POST /v1/jobs", r.StartJob)
		g.HandleFunc("GET /v1/jobs/current", r.CurrentJob)
	})

	// Streams stay open for the life of the client; no handler timeout.
	r.HandleFunc("GET /v1/jobs/current/events", r.JobEvents)
}

func (r *Router) ResolveVideo(w http.ResponseWriter, req *http.Request) {
	log := r.log.With(slog.String("handler", "ResolveVideo"))
	ctx := req.Context()

	var in request.Resolve
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	meta, err := r.resolver.Resolve(ctx, in.URL)
	if err != nil {
		log.ErrorContext(ctx, consts.RespVideoResolveFail, slog.Any("error", err))
		r.writeError(w, consts.RespVideoResolveFail, nil, err, consts.MsgVideoInfoFailed)

		return
	}

	r.titles.set(urls.Normalize(in.URL), meta.Title)

	response.OK(w, consts.RespVideoResolved, meta, nil)
}

func (r *Router) StartJob(w http.ResponseWriter, req *http.Request) {
	log := r.log.With(slog.String("handler", "StartJob"))
	ctx := req.Context()

	var in request.Start
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	startReq := in.Entity()
	if startReq.Title == "" {
		startReq.Title = r.titles.get(startReq.URL)
	}

	err := r.jobs.Start(ctx, startReq)
	if errors.Is(err, errs.ErrJobActive) {
		log.DebugContext(ctx, consts.RespJobAlreadyActive)
		response.Conflict(w, consts.RespJobAlreadyActive, r.jobs.Snapshot(), err)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespJobStartFail, slog.Any("error", err))
		r.writeError(w, consts.RespJobStartFail, r.jobs.Snapshot(), err, consts.MsgStartFailed)

		return
	}

	job := r.jobs.Snapshot()
	log.InfoContext(ctx, consts.RespJobStarted, slog.Any("job", job))

	response.Accepted(w, consts.RespJobStarted, job, nil)
}

func (r *Router) CurrentJob(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, consts.RespJobRetrieved, r.jobs.Snapshot(), nil)
}

// JobEvents streams job snapshots as server-sent events until the client goes away.
func (r *Router) JobEvents(w http.ResponseWriter, req *http.Request) {
	log := r.log.With(slog.String("handler", "JobEvents"))
	ctx := req.Context()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.WarnContext(ctx, "clear write deadline", slog.Any("error", err))
	}

	updates, cancel := r.jobs.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(job)
			if err != nil {
				log.ErrorContext(ctx, "marshal job", slog.Any("error", err))

				return
			}

			fmt.Fprintf(w, "event: job\ndata: %s\n\n", data)

			if err := rc.Flush(); err != nil {
				log.DebugContext(ctx, "flush event", slog.Any("error", err))

				return
			}
		}
	}
}

// writeError maps controller and resolver errors to statuses. The reply carries
// the user-facing message, falling back to fallback.
func (r *Router) writeError(w http.ResponseWriter, message string, data any, err error, fallback string) {
	userErr := errors.New(errs.Message(err, fallback))

	switch {
	case errors.Is(err, errs.ErrValidation):
		response.UnprocessableEntity(w, message, userErr)
	case errors.Is(err, errs.ErrService), errors.Is(err, errs.ErrNetwork):
		response.BadGateway(w, message, data, userErr)
	case errors.Is(err, errs.ErrControllerClosed):
		response.ServiceUnavailable(w, message, err)
	default:
		response.InternalServerError(w, message, data, userErr)
	}
}
