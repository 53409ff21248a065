package timefmt

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "N/A"},
		{"negative", -5, "N/A"},
		{"nan", math.NaN(), "N/A"},
		{"inf", math.Inf(1), "N/A"},
		{"sub_second", 0.4, "00:00"},
		{"one_minute_five", 65, "01:05"},
		{"three_forty_five", 225, "03:45"},
		{"just_under_hour", 3599, "59:59"},
		{"exact_hour", 3600, "1:00:00"},
		{"hour_minute_second", 3661, "1:01:01"},
		{"fractional", 61.9, "01:01"},
		{"many_hours", 36000 + 59, "10:00:59"},
		{"beyond_int64_hours", math.Ldexp(225, 74), "1180591620717411303424:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Format(tc.seconds)
			if got != tc.want {
				t.Fatalf("Format(%v) = %q; want %q", tc.seconds, got, tc.want)
			}
		})
	}
}
