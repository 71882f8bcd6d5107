package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "<empty>"},
		{"whitespace only", "   \n  ", "<empty>"},
		{"newlines flattened", "line one\nline two\r\nline three", "line one line two  line three"},
		{"short passthrough", "hello", "hello"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in); got != tc.want {
			t.Errorf("%s: Truncate(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}

	long := strings.Repeat("x", 500)
	got := Truncate(long)
	if len(got) != clipLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("long value not clipped: len=%d", len(got))
	}
}

func TestFormatEventLine(t *testing.T) {
	event := Event{
		Time:    time.Date(2026, 8, 25, 14, 3, 9, 0, time.UTC),
		Level:   slog.LevelWarn,
		Message: "reconnect scheduled",
		Fields: map[string]any{
			"delay":   "4.5s",
			"attempt": 2,
		},
	}

	got := FormatEventLine(event)
	want := "14:03:09 [WARN] reconnect scheduled attempt=2 delay=4.5s\n"
	if got != want {
		t.Fatalf("FormatEventLine() = %q, want %q", got, want)
	}
}

func TestFormatEventLineNoFields(t *testing.T) {
	event := Event{
		Time:    time.Date(2026, 8, 25, 14, 3, 9, 0, time.UTC),
		Level:   slog.LevelInfo,
		Message: "agent starting",
	}
	if got := FormatEventLine(event); got != "14:03:09 [INFO] agent starting\n" {
		t.Fatalf("FormatEventLine() = %q", got)
	}
}

func TestFormatFieldValue(t *testing.T) {
	if got := formatFieldValue(nil); got != "<nil>" {
		t.Errorf("nil = %q", got)
	}
	if got := formatFieldValue(errors.New("dial refused")); got != "dial refused" {
		t.Errorf("error = %q", got)
	}
	if got := formatFieldValue([]byte("raw bytes")); got != "raw bytes" {
		t.Errorf("bytes = %q", got)
	}
	if got := formatFieldValue(42); got != "42" {
		t.Errorf("int = %q", got)
	}
}
