// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultPollInterval is the fixed cadence of progress checks.
	DefaultPollInterval = 750 * time.Millisecond
	// DefaultFPS is assumed for formats that report no frame rate.
	DefaultFPS = 30
	// UnknownFilesize is shown for formats that report no size.
	UnknownFilesize = "Unknown"
	// MaxTitleRunes limits the title part of a fallback filename.
	MaxTitleRunes = 50
	// FallbackTitle names artifacts when neither header nor title is usable.
	FallbackTitle = "download"
	// ExtAudio is the fallback extension for audio artifacts.
	ExtAudio = "mp3"
	// ExtVideo is the fallback extension for video artifacts.
	ExtVideo = "mp4"
)

// Remote service endpoints.
const (
	PathVideoInfo     = "/video-info"
	PathStartDownload = "/start-download"
	PathProgress      = "/progress/"
	PathFile          = "/file/"
)

// Remote operation labels used in logs, errors and metrics.
const (
	OpVideoInfo = "video_info"
	OpStart     = "start_download"
	OpProgress  = "progress"
	OpFile      = "file"
)

// User-facing messages.
const (
	// MsgVideoInfoFailed is shown when the service rejects a resolution without a message.
	MsgVideoInfoFailed = "Failed to fetch video info"
	// MsgStartFailed is shown when a job cannot be started.
	MsgStartFailed = "Failed to start download"
	// MsgRetrievalFailed is shown when the finished file cannot be downloaded.
	MsgRetrievalFailed = "Failed to download the finished file"
	// MsgProgressUnavailable is shown after too many failed progress checks.
	MsgProgressUnavailable = "Lost contact with the download service"
	// MsgJobTimeout is shown when a job exceeds its overall deadline.
	MsgJobTimeout = "Download timed out"
	// MsgJobFailed is shown when the service reports an empty failure.
	MsgJobFailed = "Download failed"
	// MsgCompleted prefixes the success message.
	MsgCompleted = "Download complete"
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespUnprocessableEntity is returned when the request cannot be processed.
	RespUnprocessableEntity = "unprocessable entity"
	// RespVideoResolved is returned when metadata was resolved.
	RespVideoResolved = "video resolved"
	// RespVideoResolveFail is returned when metadata resolution fails.
	RespVideoResolveFail = "video resolve failed"
	// RespJobStarted is returned when a job was started.
	RespJobStarted = "job started"
	// RespJobStartFail is returned when a job cannot be started.
	RespJobStartFail = "job start failed"
	// RespJobAlreadyActive is returned when a job is already running.
	RespJobAlreadyActive = "job already active"
	// RespJobRetrieved is returned when the current job snapshot is returned.
	RespJobRetrieved = "job retrieved"
)
