package ptr

import "testing"

func TestDeref(t *testing.T) {
	if got := Deref(nil, "best"); got != "best" {
		t.Errorf("Deref(nil) = %q; want best", got)
	}

	if got := Deref(Of("22"), "best"); got != "22" {
		t.Errorf("Deref(22) = %q; want 22", got)
	}
}

func TestNonZero(t *testing.T) {
	if got := NonZero(""); got != nil {
		t.Errorf("NonZero(\"\") = %v; want nil", *got)
	}

	got := NonZero("137")
	if got == nil || *got != "137" {
		t.Errorf("NonZero(137) = %v; want 137", got)
	}
}
