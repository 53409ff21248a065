package artifact

import (
	"mime"
	"strings"

	"relaydl/internal/consts"
	"relaydl/internal/entity"
	"relaydl/internal/storage"
)

const dispositionFilename = "filename="

var titleSeparators = strings.NewReplacer("/", "_", `\`, "_")

// Filename picks the name an artifact is saved under. A usable name from the
// Content-Disposition header wins; otherwise it is derived from hint.
func Filename(disposition string, hint entity.NameHint) string {
	if name := storage.Sanitize(FilenameFromDisposition(disposition)); name != "" {
		return name
	}

	return FallbackName(hint)
}

// FilenameFromDisposition returns the filename carried by a Content-Disposition
// value, or "" if there is none. RFC 6266 values are parsed properly
// (filename* wins over filename); malformed values fall back to taking the text
// after "filename=" up to the next ';', with quotes stripped.
func FilenameFromDisposition(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(header)
	if err == nil {
		return strings.TrimSpace(params["filename"])
	}

	idx := strings.Index(strings.ToLower(header), dispositionFilename)
	if idx < 0 {
		return ""
	}

	value := header[idx+len(dispositionFilename):]
	value, _, _ = strings.Cut(value, ";")

	return strings.TrimSpace(strings.ReplaceAll(value, `"`, ""))
}

// FallbackName builds "<title up to 50 runes>.<mp3|mp4>".
func FallbackName(hint entity.NameHint) string {
	ext := consts.ExtVideo
	if hint.IsAudio {
		ext = consts.ExtAudio
	}

	// separators in a title are text, not paths
	title := []rune(titleSeparators.Replace(strings.TrimSpace(hint.Title)))
	if len(title) > consts.MaxTitleRunes {
		title = title[:consts.MaxTitleRunes]
	}

	name := storage.Sanitize(string(title))
	if name == "" {
		name = consts.FallbackTitle
	}

	return name + "." + ext
}
