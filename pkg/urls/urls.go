// Package urls provides utility functions for working with URLs.
package urls

import (
	"net/url"
	"strings"
)

// Normalize trims spaces, parses and returns the URL in string format.
// Unparseable input is returned trimmed but otherwise untouched.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}
