package util

import "testing"

func TestTrimString(t *testing.T) {
	if got := TrimString("short", 512); got != "short" {
		t.Errorf("TrimString(short, 512) = %q", got)
	}

	if got := TrimString("abcdef", 4); got != "abcd" {
		t.Errorf("TrimString(abcdef, 4) = %q, want abcd", got)
	}

	if got := TrimString("", 4); got != "" {
		t.Errorf("TrimString(empty, 4) = %q", got)
	}
}
