package remote

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"relaydl/pkg/ptr"
)

var jsonNull = []byte("null")

// Number is a JSON value the service sends as a number, a numeric string
// (optionally suffixed with "%") or null. Anything else is kept as invalid
// rather than failing the whole payload.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil //nolint:nilerr // malformed values are invalid, not fatal
		}
	} else {
		raw = string(data)
	}

	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil //nolint:nilerr // malformed values are invalid, not fatal
	}

	n.Value = v
	n.Valid = true

	return nil
}

// Float64 returns the value, or NaN when it is invalid.
func (n Number) Float64() float64 {
	if !n.Valid {
		return math.NaN()
	}

	return n.Value
}

// Or returns the value, or def when it is invalid.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}

	return n.Value
}

// Text is a display value the service sends as a string, a number, a bool or null.
type Text struct {
	Value string
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		t.Value = s
		t.Valid = true

		return nil
	}

	// numbers, bools and structured values are shown as sent
	t.Value = string(data)
	t.Valid = true

	return nil
}

// String returns the text, empty when absent.
func (t Text) String() string {
	return t.Value
}

// Ptr returns a pointer to the text, nil when absent.
func (t Text) Ptr() *string {
	if !t.Valid {
		return nil
	}

	return ptr.Of(t.Value)
}

// Message is an error report. Only a non-empty JSON string counts; null,
// false, numbers and objects mean no error was reported.
type Message struct {
	Value string
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	*m = Message{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil //nolint:nilerr // malformed values are absent, not fatal
	}

	m.Value = strings.TrimSpace(s)

	return nil
}

// String returns the message, empty when none was reported.
func (m Message) String() string {
	return m.Value
}
