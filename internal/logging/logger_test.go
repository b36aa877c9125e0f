package logging

import "testing"

func TestNewAcceptsKnownLevelsAndFormats(t *testing.T) {
	for _, tc := range []struct{ level, format string }{
		{"debug", "console"},
		{"info", "json"},
		{"warn", ""},
		{"ERROR", "Console"},
	} {
		if _, err := New(tc.level, tc.format); err != nil {
			t.Errorf("New(%q, %q): %v", tc.level, tc.format, err)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("verbose", "console"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "logfmt"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
