package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/entity"
	"relaydl/internal/observability"
	"relaydl/internal/session"
)

const interval = 750 * time.Millisecond

var errNoMoreTicks = errors.New("no scripted tick left")

// manualScheduler fires timers only when the test asks it to.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}

	t.stopped = true

	return true
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) session.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTimer{s: s, delay: d, f: f}
	s.timers = append(s.timers, t)

	return t
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// pending returns the timers that have neither fired nor been stopped.
func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*manualTimer

	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}

	return out
}

// fire advances the clock to the only pending timer and runs it synchronously.
func (s *manualScheduler) fire(t *testing.T) {
	t.Helper()

	pending := s.pending()
	if len(pending) != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", len(pending))
	}

	timer := pending[0]

	s.mu.Lock()
	timer.fired = true
	s.now = s.now.Add(timer.delay)
	s.mu.Unlock()

	timer.f()
}

type tick struct {
	progress entity.Progress
	err      error
}

type fakeService struct {
	mu sync.Mutex

	sessionID string
	startErr  error
	ticks     []tick

	starts     []entity.StartRequest
	progressed []string

	// onProgress runs inside Progress before it returns.
	onProgress func()
}

func (f *fakeService) StartDownload(_ context.Context, req entity.StartRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts = append(f.starts, req)

	if f.startErr != nil {
		return "", f.startErr
	}

	return f.sessionID, nil
}

func (f *fakeService) Progress(_ context.Context, sessionID string) (entity.Progress, error) {
	f.mu.Lock()
	f.progressed = append(f.progressed, sessionID)

	next := tick{err: errNoMoreTicks}
	if len(f.ticks) > 0 {
		next, f.ticks = f.ticks[0], f.ticks[1:]
	}

	hook := f.onProgress
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	return next.progress, next.err
}

func (f *fakeService) progressCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.progressed)
}

type fakeRetriever struct {
	mu    sync.Mutex
	err   error
	calls []string
	hints []entity.NameHint
}

func (f *fakeRetriever) FetchAndSave(_ context.Context, sessionID string, hint entity.NameHint) (entity.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, sessionID)
	f.hints = append(f.hints, hint)

	if f.err != nil {
		return entity.Artifact{}, f.err
	}

	return entity.Artifact{Filename: "Clip.mp4", Path: "/downloads/Clip.mp4", Size: 2048}, nil
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

type harness struct {
	ctrl  *session.Controller
	sched *manualScheduler
	svc   *fakeService
	ret   *fakeRetriever
}

func pollConfig() config.Poll {
	return config.Poll{Interval: interval, TickTimeout: time.Second, MaxFailures: 20}
}

func newHarness(t *testing.T, poll config.Poll, metrics *observability.Metrics) *harness {
	t.Helper()

	h := &harness{
		sched: newManualScheduler(),
		svc:   &fakeService{sessionID: "abc123"},
		ret:   &fakeRetriever{},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Poll: poll}

	h.ctrl = session.New(t.Context(), log, cfg, h.svc, h.ret, metrics, session.WithScheduler(h.sched))
	t.Cleanup(h.ctrl.Close)

	return h
}

func (h *harness) script(ticks ...tick) {
	h.svc.mu.Lock()
	defer h.svc.mu.Unlock()

	h.svc.ticks = append(h.svc.ticks, ticks...)
}

func progressTick(p float64) tick {
	return tick{progress: entity.Progress{Progress: p, Status: "downloading", Speed: "1MiB/s", ETA: "3s"}}
}
