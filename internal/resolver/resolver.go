// Package resolver turns a media URL into display metadata and selectable formats.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"relaydl/internal/consts"
	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/observability"
	"relaydl/internal/remote"
	"relaydl/pkg/timefmt"
	"relaydl/pkg/urls"
)

// InfoFetcher fetches raw metadata from the conversion service.
type InfoFetcher interface {
	VideoInfo(ctx context.Context, url string) (*remote.VideoInfo, error)
}

// Resolver resolves media URLs. It never retries; callers may call again.
type Resolver struct {
	log     *slog.Logger
	fetcher InfoFetcher
	metrics *observability.Metrics
}

// New creates a new Resolver.
func New(log *slog.Logger, fetcher InfoFetcher, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		log:     log.With(slog.String("package", "resolver")),
		fetcher: fetcher,
		metrics: metrics,
	}
}

// Resolve fetches metadata for url.
//
// It fails with *errs.ValidationError for an empty url, *errs.ServiceError when
// the service rejects the request and *errs.NetworkError on transport failure.
func (r *Resolver) Resolve(ctx context.Context, url string) (entity.VideoMetadata, error) {
	url = urls.Normalize(url)
	if url == "" {
		r.metrics.RecordResolution("invalid")

		return entity.VideoMetadata{}, &errs.ValidationError{Field: "url", Reason: "please enter a URL"}
	}

	log := r.log.With(slog.String("url", url))

	info, err := r.fetcher.VideoInfo(ctx, url)
	if err != nil {
		r.metrics.RecordResolution("error")
		log.WarnContext(ctx, "resolve video", slog.Any("error", err))

		var svcErr *errs.ServiceError
		if errors.As(err, &svcErr) && svcErr.Message == "" {
			svcErr.Message = consts.MsgVideoInfoFailed
		}

		return entity.VideoMetadata{}, fmt.Errorf("resolve %s: %w", url, err)
	}

	meta := toMetadata(info)

	r.metrics.RecordResolution("ok")
	log.InfoContext(ctx, "video resolved", slog.Any("metadata", meta))

	return meta, nil
}

func toMetadata(info *remote.VideoInfo) entity.VideoMetadata {
	duration := info.DurationSeconds.Float64()

	meta := entity.VideoMetadata{
		Title:             info.Title.String(),
		Author:            info.Author.String(),
		Thumbnail:         info.Thumbnail.String(),
		DurationSeconds:   info.DurationSeconds.Or(0),
		FormattedDuration: timefmt.Format(duration),
		Formats:           make([]entity.Format, 0, len(info.Formats)),
	}

	if info.ViewCount.Valid {
		views := int64(math.Round(info.ViewCount.Value))
		meta.ViewCount = &views
	}

	for _, f := range info.Formats {
		meta.Formats = append(meta.Formats, toFormat(f))
	}

	return meta
}

func toFormat(f remote.Format) entity.Format {
	fps := f.FPS.Or(consts.DefaultFPS)
	if fps <= 0 {
		fps = consts.DefaultFPS
	}

	filesize := f.Filesize.String()
	if filesize == "" {
		filesize = consts.UnknownFilesize
	}

	return entity.Format{
		FormatID:   f.FormatID.Ptr(),
		Resolution: f.Resolution.Ptr(),
		FPS:        fps,
		Quality:    f.Quality.String(),
		Filesize:   filesize,
		Ext:        f.Ext.String(),
	}
}
