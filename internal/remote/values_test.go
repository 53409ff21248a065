package remote_test

import (
	"encoding/json"
	"math"
	"testing"

	"relaydl/internal/remote"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue float64
		wantValid bool
	}{
		{"number", `42.5`, 42.5, true},
		{"zero", `0`, 0, true},
		{"numeric string", `"30"`, 30, true},
		{"percent string", `" 45.5% "`, 45.5, true},
		{"null", `null`, 0, false},
		{"text", `"unknown"`, 0, false},
		{"bool", `true`, 0, false},
		{"nan string", `"NaN"`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n remote.Number
			if err := json.Unmarshal([]byte(tt.input), &n); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if n.Valid != tt.wantValid || n.Value != tt.wantValue {
				t.Errorf("got %+v; want value %v valid %v", n, tt.wantValue, tt.wantValid)
			}

			if !tt.wantValid {
				if !math.IsNaN(n.Float64()) {
					t.Errorf("expected NaN for invalid number, got %v", n.Float64())
				}

				if got := n.Or(30); got != 30 {
					t.Errorf("expected default 30, got %v", got)
				}
			}
		})
	}
}

func TestNumberInStruct(t *testing.T) {
	var payload struct {
		Progress remote.Number `json:"progress"`
		Missing  remote.Number `json:"missing"`
	}

	if err := json.Unmarshal([]byte(`{"progress":"70%"}`), &payload); err != nil {
		t.Fatal(err)
	}

	if payload.Progress.Float64() != 70 || payload.Missing.Valid {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantNil bool
	}{
		{"string", `"1.2MiB/s"`, "1.2MiB/s", false},
		{"number", `12`, "12", false},
		{"float", `3.5`, "3.5", false},
		{"empty string", `""`, "", false},
		{"null", `null`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txt remote.Text
			if err := json.Unmarshal([]byte(tt.input), &txt); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if txt.String() != tt.want {
				t.Errorf("got %q, want %q", txt.String(), tt.want)
			}

			if p := txt.Ptr(); (p == nil) != tt.wantNil {
				t.Errorf("got pointer %v, want nil %v", p, tt.wantNil)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"text", `" video unavailable "`, "video unavailable"},
		{"empty string", `""`, ""},
		{"null", `null`, ""},
		{"false", `false`, ""},
		{"true", `true`, ""},
		{"zero", `0`, ""},
		{"object", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg remote.Message
			if err := json.Unmarshal([]byte(tt.input), &msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if msg.String() != tt.want {
				t.Errorf("got %q, want %q", msg.String(), tt.want)
			}
		})
	}
}
