// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"time"
)

// Phase is the lifecycle phase of a download job.
type Phase string

const (
	// PhaseIdle indicates that no job has been started yet.
	PhaseIdle Phase = "idle"
	// PhaseStarting indicates that a session-creation request is in flight.
	PhaseStarting Phase = "starting"
	// PhasePolling indicates that a session exists and progress is being checked.
	PhasePolling Phase = "polling"
	// PhaseCompleted indicates that the artifact was retrieved and saved.
	PhaseCompleted Phase = "completed"
	// PhaseFailed indicates that the job ended with an error.
	PhaseFailed Phase = "failed"
)

// Terminal reports whether no further ticks or retrieval happen in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// AcceptsStart reports whether a new job may be started from this phase.
func (p Phase) AcceptsStart() bool {
	return p == PhaseIdle || p.Terminal()
}

// VideoMetadata is the result of resolving a media URL.
type VideoMetadata struct {
	Title             string   `json:"title"`
	Author            string   `json:"author"`
	Thumbnail         string   `json:"thumbnail"`
	DurationSeconds   float64  `json:"durationSeconds"`
	FormattedDuration string   `json:"formattedDuration"`
	ViewCount         *int64   `json:"viewCount"`
	Formats           []Format `json:"formats"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (m VideoMetadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("title", m.Title),
		slog.String("author", m.Author),
		slog.String("duration", m.FormattedDuration),
		slog.Int("formats", len(m.Formats)),
	)
}

// Format is one selectable output format.
// A nil FormatID together with an audio request selects the best audio stream.
type Format struct {
	FormatID   *string `json:"formatId"`
	Resolution *string `json:"resolution"`
	FPS        float64 `json:"fps"`
	Quality    string  `json:"quality"`
	Filesize   string  `json:"filesize"`
	Ext        string  `json:"ext"`
}

// StartRequest describes the job to start.
type StartRequest struct {
	URL      string  `json:"url"`
	FormatID *string `json:"formatId"`
	IsAudio  bool    `json:"isAudio"`
	// Title names the saved file when the service sends no filename.
	Title string `json:"title,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r StartRequest) LogValue() slog.Value {
	formatID := "<best>"
	if r.FormatID != nil {
		formatID = *r.FormatID
	}

	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("format_id", formatID),
		slog.Bool("is_audio", r.IsAudio),
	)
}

// Progress is one progress payload reported by the service.
type Progress struct {
	Progress   float64
	Status     string
	Downloaded string
	Total      string
	Speed      string
	ETA        string
	Error      string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p Progress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("progress", p.Progress),
		slog.String("status", p.Status),
		slog.String("downloaded", p.Downloaded),
		slog.String("total", p.Total),
		slog.String("speed", p.Speed),
		slog.String("eta", p.ETA),
		slog.String("error", p.Error),
	)
}

// NameHint carries what is needed to name an artifact when the service does not.
type NameHint struct {
	Title   string
	IsAudio bool
}

// Artifact is a saved download.
type Artifact struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (a Artifact) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("filename", a.Filename),
		slog.String("path", a.Path),
		slog.Int64("size", a.Size),
		slog.String("content_type", a.ContentType),
	)
}

// Job is an immutable snapshot of the current download job.
// The controller replaces it as a whole on every transition.
type Job struct {
	SessionID      string    `json:"sessionId"`
	Phase          Phase     `json:"phase"`
	Progress       float64   `json:"progressPercent"`
	Status         string    `json:"status"`
	Downloaded     string    `json:"downloaded"`
	Total          string    `json:"total"`
	Speed          string    `json:"speed"`
	ETA            string    `json:"eta"`
	Error          string    `json:"error,omitempty"`
	SuccessMessage string    `json:"successMessage,omitempty"`
	Artifact       *Artifact `json:"artifact,omitempty"`
	URL            string    `json:"url,omitempty"`
	IsAudio        bool      `json:"isAudio"`
	StartedAt      time.Time `json:"startedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (j Job) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session_id", j.SessionID),
		slog.String("phase", string(j.Phase)),
		slog.Float64("progress", j.Progress),
		slog.String("status", j.Status),
		slog.String("error", j.Error),
	)
}
