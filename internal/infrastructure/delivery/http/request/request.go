// Package request holds the local API's request bodies.
package request

import (
	"strings"

	"relaydl/internal/entity"
	"relaydl/internal/errs"
	"relaydl/pkg/urls"
)

// Resolve asks for the metadata of a media URL.
type Resolve struct {
	URL string `json:"url"`
}

// Validate checks the request.
func (r *Resolve) Validate() error {
	if urls.Normalize(r.URL) == "" {
		return errs.ErrInvalidURL
	}

	return nil
}

// Start asks for a new download job. A null formatId with isAudio selects the best audio stream.
// Title names the saved file when the service sends none; when empty, the title of the last
// resolve of the same URL is used.
type Start struct {
	URL      string  `json:"url"`
	FormatID *string `json:"formatId"`
	IsAudio  bool    `json:"isAudio"`
	Title    string  `json:"title"`
}

// Validate checks the request.
func (s *Start) Validate() error {
	if urls.Normalize(s.URL) == "" {
		return errs.ErrInvalidURL
	}

	return nil
}

// Entity converts the request into a start request for the controller.
func (s *Start) Entity() entity.StartRequest {
	req := entity.StartRequest{
		URL:     urls.Normalize(s.URL),
		IsAudio: s.IsAudio,
		Title:   strings.TrimSpace(s.Title),
	}

	if s.FormatID != nil {
		if id := strings.TrimSpace(*s.FormatID); id != "" {
			req.FormatID = &id
		}
	}

	return req
}
