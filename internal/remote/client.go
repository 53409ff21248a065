// Package remote is the HTTP client for the conversion service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"relaydl/internal/config"
	"relaydl/internal/consts"
	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/internal/observability"

	"github.com/google/uuid"
)

const (
	// HeaderXRequestID correlates a request with the service's logs.
	HeaderXRequestID = "X-Request-ID"
	// AcceptEncodingFile lists the artifact encodings the retriever can decode.
	AcceptEncodingFile = "xz, gzip, identity"

	maxErrorBodySize = 64 * 1024
)

// Client talks to the conversion service.
type Client struct {
	log     *slog.Logger
	cfg     *config.Config
	http    *http.Client
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithProxy routes requests through proxyFn, e.g. (*proxy.Manager).ProxyFunc().
func WithProxy(proxyFn func(*http.Request) (*url.URL, error)) Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = proxyFn
		c.http = &http.Client{Transport: transport}
	}
}

// New creates a new service client.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		log:     log.With(slog.String("package", "remote")),
		cfg:     cfg,
		http:    &http.Client{},
		metrics: metrics,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// VideoInfo resolves url into raw metadata.
func (c *Client) VideoInfo(ctx context.Context, rawURL string) (*VideoInfo, error) {
	ctx, cancel := c.withTimeout(ctx, c.cfg.Remote.RequestTimeout)
	defer cancel()

	resp, err := c.do(ctx, consts.OpVideoInfo, http.MethodPost, consts.PathVideoInfo, videoInfoRequest{URL: rawURL})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info VideoInfo
	if err := decodeJSON(resp, &info); err != nil {
		return nil, &errs.NetworkError{Op: consts.OpVideoInfo, Err: err}
	}

	return &info, nil
}

// StartDownload creates a conversion session and returns its id.
func (c *Client) StartDownload(ctx context.Context, req entity.StartRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx, c.cfg.Remote.RequestTimeout)
	defer cancel()

	body := startRequest{URL: req.URL, FormatID: req.FormatID, IsAudio: req.IsAudio}

	resp, err := c.do(ctx, consts.OpStart, http.MethodPost, consts.PathStartDownload, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out startResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", &errs.NetworkError{Op: consts.OpStart, Err: err}
	}

	sessionID := strings.TrimSpace(out.SessionID.String())
	if sessionID == "" {
		return "", &errs.NetworkError{Op: consts.OpStart, Err: errs.ErrSessionIDEmpty}
	}

	return sessionID, nil
}

// Progress reads the status of a session. The caller bounds it with ctx.
func (c *Client) Progress(ctx context.Context, sessionID string) (entity.Progress, error) {
	resp, err := c.do(ctx, consts.OpProgress, http.MethodGet, consts.PathProgress+url.PathEscape(sessionID), nil)
	if err != nil {
		return entity.Progress{}, err
	}
	defer resp.Body.Close()

	var out progressResponse
	if err := decodeJSON(resp, &out); err != nil {
		return entity.Progress{}, &errs.NetworkError{Op: consts.OpProgress, Err: err}
	}

	return entity.Progress{
		Progress:   out.Progress.Or(0),
		Status:     out.Status.String(),
		Downloaded: out.Downloaded.String(),
		Total:      out.Total.String(),
		Speed:      out.Speed.String(),
		ETA:        out.ETA.String(),
		Error:      strings.TrimSpace(out.Error.String()),
	}, nil
}

// File opens the artifact transfer of a completed session.
func (c *Client) File(ctx context.Context, sessionID string) (*File, error) {
	resp, err := c.do(ctx, consts.OpFile, http.MethodGet, consts.PathFile+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}

	return &File{
		Body:               resp.Body,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ContentType:        resp.Header.Get("Content-Type"),
		ContentEncoding:    resp.Header.Get("Content-Encoding"),
		Size:               resp.ContentLength,
	}, nil
}

// do sends the request and maps failures: transport errors to *errs.NetworkError,
// non-2xx responses to *errs.ServiceError. On success the caller closes the body.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	log := c.log.With(slog.String("op", op))

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Remote.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new %s request: %w", op, err)
	}

	reqID := uuid.NewString()

	req.Header.Set(HeaderXRequestID, reqID)
	req.Header.Set("User-Agent", c.cfg.Remote.UserAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if op == consts.OpFile {
		req.Header.Set("Accept-Encoding", AcceptEncodingFile)
	} else {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.metrics.RecordRemoteRequest(op, 0, duration)
		log.DebugContext(ctx, "remote request failed",
			slog.String("request_id", reqID), slog.Duration("duration", duration), slog.Any("error", err))

		return nil, &errs.NetworkError{Op: op, Err: err}
	}

	c.metrics.RecordRemoteRequest(op, resp.StatusCode, duration)
	log.DebugContext(ctx, "remote request",
		slog.String("request_id", reqID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		return nil, &errs.ServiceError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}

// readErrorMessage extracts the "error" field of a failure body, empty if there is none.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return ""
	}

	var out errorResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return ""
	}

	return strings.TrimSpace(out.Error.String())
}

func decodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
