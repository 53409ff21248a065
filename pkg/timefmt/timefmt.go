// Package timefmt formats media durations for display.
package timefmt

import (
	"fmt"
	"math"
)

// NotAvailable is returned for durations that cannot be displayed.
const NotAvailable = "N/A"

// Format converts a number of seconds into "MM:SS" or "H:MM:SS".
// Hours are never padded, minutes and seconds always are.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return NotAvailable
	}

	h := math.Floor(seconds / 3600)
	m := math.Floor(math.Mod(seconds, 3600) / 60)
	s := math.Floor(math.Mod(seconds, 60))

	if h == 0 {
		return fmt.Sprintf("%02d:%02d", int64(m), int64(s))
	}

	// h can exceed the int64 range
	return fmt.Sprintf("%.0f:%02d:%02d", h, int64(m), int64(s))
}
