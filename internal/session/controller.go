// Package session drives one server-delegated download job from start to a saved artifact.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/consts"
	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/observability"
	"relaydl/pkg/urls"
)

// Service is the part of the conversion service the controller talks to.
type Service interface {
	StartDownload(ctx context.Context, req entity.StartRequest) (string, error)
	Progress(ctx context.Context, sessionID string) (entity.Progress, error)
}

// Retriever fetches and saves the artifact of a finished session.
type Retriever interface {
	FetchAndSave(ctx context.Context, sessionID string, hint entity.NameHint) (entity.Artifact, error)
}

// Failure reasons used as metric labels.
const (
	reasonStart       = "start"
	reasonJob         = "job"
	reasonUnavailable = "progress_unavailable"
	reasonTimeout     = "timeout"
	reasonRetrieval   = "retrieval"
)

// Tick results used as metric labels.
const (
	tickOK       = "ok"
	tickError    = "error"
	tickJobError = "job_error"
	tickComplete = "complete"
)

// Controller owns the lifecycle of the single download job.
//
// All state lives behind mu and is published as whole entity.Job snapshots.
// Network calls happen outside the lock; their results are applied only if
// the job generation they were issued for is still current.
type Controller struct {
	log       *slog.Logger
	cfg       config.Poll
	service   Service
	retriever Retriever
	metrics   *observability.Metrics
	sched     Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	job       entity.Job
	err       error
	gen       uint64
	timer     Timer
	failures  int
	deadline  time.Time
	hint      entity.NameHint
	jobCtx    context.Context
	jobCancel context.CancelFunc
	jobTimer  func()
	closed    bool

	subs    map[uint64]chan entity.Job
	nextSub uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// New creates an idle controller. Cancelling ctx aborts in-flight requests of
// the current job; call Close to stop the controller.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config, service Service, retriever Retriever,
	metrics *observability.Metrics, opts ...Option,
) *Controller {
	ctx, cancel := context.WithCancel(ctx)

	c := &Controller{
		log:       log.With(slog.String("package", "session")),
		cfg:       cfg.Poll,
		service:   service,
		retriever: retriever,
		metrics:   metrics,
		sched:     wallClock{},
		ctx:       ctx,
		cancel:    cancel,
		job:       entity.Job{Phase: entity.PhaseIdle},
		subs:      make(map[uint64]chan entity.Job),
	}

	if c.cfg.Interval <= 0 {
		c.cfg.Interval = consts.DefaultPollInterval
	}

	if c.cfg.MaxFailures < 1 {
		c.cfg.MaxFailures = 1
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins a new job and returns once the service has created a session
// (or refused to). Progress is then tracked in the background.
//
// Start fails with errs.ErrJobActive while another job is starting or polling,
// with *errs.ValidationError for an empty URL and with the service error if the
// session could not be created; the latter also leaves the job failed.
func (c *Controller) Start(ctx context.Context, req entity.StartRequest) error {
	req.URL = urls.Normalize(req.URL)

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return errs.ErrControllerClosed
	}

	if !c.job.Phase.AcceptsStart() {
		c.mu.Unlock()

		return errs.ErrJobActive
	}

	if req.URL == "" {
		c.mu.Unlock()

		return &errs.ValidationError{Field: "url", Reason: "please enter a URL"}
	}

	c.gen++
	gen := c.gen
	now := c.sched.Now()

	c.stopTimerLocked()
	c.failures = 0
	c.err = nil
	c.hint = entity.NameHint{Title: req.Title, IsAudio: req.IsAudio}
	c.deadline = time.Time{}

	if c.cfg.MaxDuration > 0 {
		c.deadline = now.Add(c.cfg.MaxDuration)
	}

	c.jobCtx, c.jobCancel = context.WithCancel(c.ctx)
	c.jobTimer = c.metrics.JobTimer()
	jobCtx := c.jobCtx

	c.publishLocked(entity.Job{
		Phase:     entity.PhaseStarting,
		URL:       req.URL,
		IsAudio:   req.IsAudio,
		StartedAt: now,
		UpdatedAt: now,
	})

	c.mu.Unlock()

	log := c.log.With(slog.Uint64("generation", gen))
	log.InfoContext(ctx, "starting job", slog.Any("request", req))

	startCtx, cancelStart := context.WithCancel(ctx)
	stop := context.AfterFunc(jobCtx, cancelStart)

	sessionID, err := c.service.StartDownload(startCtx, req)

	stop()
	cancelStart()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		return errs.ErrControllerClosed
	}

	if err != nil {
		log.ErrorContext(ctx, "start job", slog.Any("error", err))
		c.failLocked(ctx, err, errs.Message(err, consts.MsgStartFailed), reasonStart, false)

		return fmt.Errorf("start download: %w", err)
	}

	job := c.job
	job.SessionID = sessionID
	job.Phase = entity.PhasePolling
	job.UpdatedAt = c.sched.Now()

	c.publishLocked(job)
	c.metrics.RecordJobStarted()
	c.scheduleLocked(gen)

	log.InfoContext(ctx, "job polling", slog.String("session_id", sessionID))

	return nil
}

// Snapshot returns the current job.
func (c *Controller) Snapshot() entity.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.job
}

// Err returns the error that ended the last job, nil if it has not failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Subscribe returns a channel carrying the current job and then every later
// snapshot. A slow reader only misses intermediate snapshots, never the latest.
// The channel is closed by cancel or by Close.
func (c *Controller) Subscribe() (<-chan entity.Job, func()) {
	ch := make(chan entity.Job, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)

		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.job

	cancel := sync.OnceFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	})

	return ch, cancel
}

// Close stops polling, aborts in-flight requests and closes all subscriptions.
// The last snapshot stays readable.
func (c *Controller) Close() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return
	}

	c.closed = true
	c.gen++
	c.stopTimerLocked()

	if c.jobCancel != nil {
		c.jobCancel()
	}

	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}

	c.mu.Unlock()

	c.cancel()
	c.log.Info("controller closed")
}

func (c *Controller) scheduleLocked(gen uint64) {
	c.timer = c.sched.AfterFunc(c.cfg.Interval, func() { c.tick(gen) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// currentLocked reports whether a response issued for gen may still be applied.
func (c *Controller) currentLocked(gen uint64) bool {
	return !c.closed && gen == c.gen && c.job.Phase == entity.PhasePolling
}

// tick performs one progress check. The next tick is scheduled only after
// this one is fully processed, so ticks of a session never overlap.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()

	if !c.currentLocked(gen) {
		c.mu.Unlock()

		return
	}

	c.timer = nil
	ctx := c.jobCtx
	sessionID := c.job.SessionID
	log := c.log.With(slog.String("session_id", sessionID))

	if !c.deadline.IsZero() && !c.sched.Now().Before(c.deadline) {
		log.WarnContext(ctx, "job deadline exceeded", slog.Duration("max_duration", c.cfg.MaxDuration))
		c.failLocked(ctx, errs.ErrJobTimeout, consts.MsgJobTimeout, reasonTimeout, true)
		c.mu.Unlock()

		return
	}

	c.mu.Unlock()

	tickCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.cfg.TickTimeout > 0 {
		tickCtx, cancel = context.WithTimeout(ctx, c.cfg.TickTimeout)
	}

	progress, err := c.service.Progress(tickCtx, sessionID)

	cancel()

	c.mu.Lock()

	if !c.currentLocked(gen) {
		c.mu.Unlock()
		log.DebugContext(ctx, "stale progress discarded")

		return
	}

	if err != nil {
		c.failures++
		c.metrics.RecordTick(tickError, 0)
		log.WarnContext(ctx, "progress check failed",
			slog.Int("consecutive_failures", c.failures), slog.Any("error", err))

		if c.failures >= c.cfg.MaxFailures {
			c.failLocked(ctx, fmt.Errorf("%w: %w", errs.ErrProgressUnavailable, err),
				consts.MsgProgressUnavailable, reasonUnavailable, true)
		} else {
			c.scheduleLocked(gen)
		}

		c.mu.Unlock()

		return
	}

	c.failures = 0

	if progress.Error != "" {
		c.metrics.RecordTick(tickJobError, progress.Progress)
		log.WarnContext(ctx, "job failed on service", slog.Any("progress", progress))
		c.failLocked(ctx, &errs.JobError{Message: progress.Error}, progress.Error, reasonJob, true)
		c.mu.Unlock()

		return
	}

	job := c.job
	job.Progress = raise(job.Progress, progress.Progress)
	job.Status = progress.Status
	job.Downloaded = progress.Downloaded
	job.Total = progress.Total
	job.Speed = progress.Speed
	job.ETA = progress.ETA
	job.UpdatedAt = c.sched.Now()

	c.publishLocked(job)

	if job.Progress < 100 {
		c.metrics.RecordTick(tickOK, job.Progress)
		log.DebugContext(ctx, "progress", slog.Any("progress", progress))
		c.scheduleLocked(gen)
		c.mu.Unlock()

		return
	}

	c.metrics.RecordTick(tickComplete, job.Progress)
	hint := c.hint
	c.mu.Unlock()

	log.InfoContext(ctx, "job finished on service, retrieving artifact")
	c.retrieve(ctx, gen, sessionID, hint)
}

// retrieve hands a finished session to the retriever, exactly once per job.
// No timer is pending at this point.
func (c *Controller) retrieve(ctx context.Context, gen uint64, sessionID string, hint entity.NameHint) {
	artifact, err := c.retriever.FetchAndSave(ctx, sessionID, hint)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(gen) {
		return
	}

	if err != nil {
		var retErr *errs.RetrievalError
		if !errors.As(err, &retErr) {
			err = &errs.RetrievalError{SessionID: sessionID, Err: err}
		}

		c.log.ErrorContext(ctx, "retrieve artifact", slog.String("session_id", sessionID), slog.Any("error", err))
		c.failLocked(ctx, err, consts.MsgRetrievalFailed, reasonRetrieval, true)

		return
	}

	c.completeLocked(ctx, artifact)
}

// failLocked ends the job with msg shown to the user.
func (c *Controller) failLocked(ctx context.Context, err error, msg, reason string, started bool) {
	if msg == "" {
		msg = consts.MsgJobFailed
	}

	c.err = err
	c.endLocked(entity.PhaseFailed, msg, "", nil)
	c.metrics.RecordJobFailed(reason, started)
	c.log.InfoContext(ctx, "job failed", slog.String("reason", reason), slog.String("message", msg))
}

func (c *Controller) completeLocked(ctx context.Context, artifact entity.Artifact) {
	c.endLocked(entity.PhaseCompleted, "", fmt.Sprintf("%s: %s", consts.MsgCompleted, artifact.Filename), &artifact)
	c.metrics.RecordJobCompleted(artifact.Size)
	c.log.InfoContext(ctx, "job completed", slog.Any("artifact", artifact))
}

// endLocked enters a terminal phase. The session id, progress and details are
// cleared; only the outcome message remains.
func (c *Controller) endLocked(phase entity.Phase, errMsg, successMsg string, artifact *entity.Artifact) {
	c.stopTimerLocked()

	if c.jobCancel != nil {
		c.jobCancel()
	}

	if c.jobTimer != nil {
		c.jobTimer()
		c.jobTimer = nil
	}

	c.publishLocked(entity.Job{
		Phase:          phase,
		Error:          errMsg,
		SuccessMessage: successMsg,
		Artifact:       artifact,
		URL:            c.job.URL,
		IsAudio:        c.job.IsAudio,
		StartedAt:      c.job.StartedAt,
		UpdatedAt:      c.sched.Now(),
	})
}

// publishLocked replaces the snapshot and hands it to every subscriber,
// dropping any snapshot a subscriber has not read yet.
func (c *Controller) publishLocked(job entity.Job) {
	c.job = job

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}

		ch <- job
	}
}

// raise returns the displayed progress after a report of next: never below
// prev, always within [0, 100].
func raise(prev, next float64) float64 {
	if math.IsNaN(next) {
		return prev
	}

	return min(max(prev, next, 0), 100)
}
