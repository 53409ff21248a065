package resolver_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/consts"
	"relaydl/internal/errs"
	"relaydl/internal/remote"
	"relaydl/internal/resolver"
)

func newResolver(t *testing.T, h http.HandlerFunc) (*resolver.Resolver, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Remote: config.Remote{BaseURL: srv.URL, RequestTimeout: 2 * time.Second}}

	return resolver.New(log, remote.New(log, cfg, nil), nil), &calls
}

func TestResolve(t *testing.T) {
	res, _ := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"title":"Clip","author":"Someone","thumbnail":"https://img/1.jpg",
			"duration_seconds":225,"view_count":"1200",
			"formats":[{"format_id":"22","resolution":"720p","quality":"hd","filesize":"","ext":"mp4"},
			           {"format_id":"137","resolution":"1080p","fps":60,"quality":"fhd","filesize":"80 MB","ext":"mp4"}]}`)
	})

	meta, err := res.Resolve(t.Context(), " https://valid/video ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if meta.FormattedDuration != "03:45" {
		t.Errorf("expected 03:45, got %q", meta.FormattedDuration)
	}

	if meta.ViewCount == nil || *meta.ViewCount != 1200 {
		t.Errorf("expected 1200 views, got %v", meta.ViewCount)
	}

	if len(meta.Formats) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(meta.Formats))
	}

	first := meta.Formats[0]
	if first.FPS != consts.DefaultFPS || first.Filesize != consts.UnknownFilesize {
		t.Errorf("expected defaults on first format, got %+v", first)
	}

	if *first.FormatID != "22" || *first.Resolution != "720p" {
		t.Errorf("unexpected first format %+v", first)
	}

	if meta.Formats[1].FPS != 60 {
		t.Errorf("expected 60 fps, got %v", meta.Formats[1].FPS)
	}
}

func TestResolveDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		want     string
	}{
		{"null", `null`, "N/A"},
		{"zero", `0`, "N/A"},
		{"text", `"live"`, "N/A"},
		{"hours", `3661`, "1:01:01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, `{"title":"x","duration_seconds":`+tt.duration+`,"view_count":null,"formats":[]}`)
			})

			meta, err := res.Resolve(t.Context(), "https://valid/video")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if meta.FormattedDuration != tt.want {
				t.Errorf("FormattedDuration = %q; want %q", meta.FormattedDuration, tt.want)
			}

			if meta.ViewCount != nil {
				t.Errorf("expected nil view count, got %d", *meta.ViewCount)
			}
		})
	}
}

func TestResolveEmptyURL(t *testing.T) {
	res, calls := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := res.Resolve(t.Context(), "   ")
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("expected no request for empty url, got %d", calls.Load())
	}
}

func TestResolveServiceError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"service message", `{"error":"Unsupported URL"}`, "Unsupported URL"},
		{"generic fallback", `{}`, consts.MsgVideoInfoFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, calls := newResolver(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, tt.body)
			})

			_, err := res.Resolve(t.Context(), "https://valid/video")

			var svcErr *errs.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected *errs.ServiceError, got %v", err)
			}

			if svcErr.Message != tt.want {
				t.Errorf("Message = %q; want %q", svcErr.Message, tt.want)
			}

			if calls.Load() != 1 {
				t.Errorf("expected exactly one attempt, got %d", calls.Load())
			}
		})
	}
}
