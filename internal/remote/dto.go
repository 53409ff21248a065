package remote

import "io"

type videoInfoRequest struct {
	URL string `json:"url"`
}

// VideoInfo is the raw /video-info payload.
type VideoInfo struct {
	Title           Text     `json:"title"`
	Author          Text     `json:"author"`
	Thumbnail       Text     `json:"thumbnail"`
	DurationSeconds Number   `json:"duration_seconds"`
	ViewCount       Number   `json:"view_count"`
	Formats         []Format `json:"formats"`
}

// Format is one entry of the raw formats list.
type Format struct {
	FormatID   Text   `json:"format_id"`
	Resolution Text   `json:"resolution"`
	FPS        Number `json:"fps"`
	Quality    Text   `json:"quality"`
	Filesize   Text   `json:"filesize"`
	Ext        Text   `json:"ext"`
}

type startRequest struct {
	URL      string  `json:"url"`
	FormatID *string `json:"format_id"`
	IsAudio  bool    `json:"is_audio"`
}

type startResponse struct {
	SessionID Text `json:"session_id"`
}

type progressResponse struct {
	Progress   Number  `json:"progress"`
	Status     Text    `json:"status"`
	Downloaded Text    `json:"downloaded"`
	Total      Text    `json:"total"`
	Speed      Text    `json:"speed"`
	ETA        Text    `json:"eta"`
	Error      Message `json:"error"`
}

type errorResponse struct {
	Error Message `json:"error"`
}

// File is an artifact transfer in progress. The caller must close Body.
type File struct {
	Body               io.ReadCloser
	ContentDisposition string
	ContentType        string
	ContentEncoding    string
	// Size is the Content-Length, -1 when unknown.
	Size int64
}
