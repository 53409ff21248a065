// Package artifact fetches the finished file of a completed session and saves it locally.
package artifact

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/remote"

	"github.com/ulikunitz/xz"
)

// FileFetcher opens the artifact transfer of a session.
type FileFetcher interface {
	File(ctx context.Context, sessionID string) (*remote.File, error)
}

// Saver persists an artifact under a name.
type Saver interface {
	Save(ctx context.Context, name string, r io.Reader) (entity.Artifact, error)
}

// Retriever fetches and saves artifacts. It never retries.
type Retriever struct {
	log     *slog.Logger
	fetcher FileFetcher
	saver   Saver
	timeout time.Duration
}

// New creates a new Retriever. timeout bounds one whole transfer; 0 means no bound.
func New(log *slog.Logger, fetcher FileFetcher, saver Saver, timeout time.Duration) *Retriever {
	return &Retriever{
		log:     log.With(slog.String("package", "artifact")),
		fetcher: fetcher,
		saver:   saver,
		timeout: timeout,
	}
}

// FetchAndSave downloads the artifact of sessionID and saves it. Every failure
// is returned as *errs.RetrievalError.
func (r *Retriever) FetchAndSave(ctx context.Context, sessionID string, hint entity.NameHint) (entity.Artifact, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := r.log.With(slog.String("session_id", sessionID))

	file, err := r.fetcher.File(ctx, sessionID)
	if err != nil {
		log.ErrorContext(ctx, "fetch artifact", slog.Any("error", err))

		return entity.Artifact{}, &errs.RetrievalError{SessionID: sessionID, Err: err}
	}
	defer file.Body.Close()

	body, err := decodeBody(file.ContentEncoding, file.Body)
	if err != nil {
		log.ErrorContext(ctx, "decode artifact", slog.Any("error", err))

		return entity.Artifact{}, &errs.RetrievalError{SessionID: sessionID, Err: err}
	}
	defer body.Close()

	name := Filename(file.ContentDisposition, hint)

	artifact, err := r.saver.Save(ctx, name, body)
	if err != nil {
		log.ErrorContext(ctx, "save artifact", slog.String("filename", name), slog.Any("error", err))

		return entity.Artifact{}, &errs.RetrievalError{SessionID: sessionID, Err: err}
	}

	artifact.ContentType = file.ContentType

	log.InfoContext(ctx, "artifact retrieved", slog.Any("artifact", artifact))

	return artifact, nil
}

// decodeBody undoes the transfer encodings the client advertises.
func decodeBody(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "xz":
		xr, err := xz.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}

		return io.NopCloser(xr), nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}

		return gr, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
