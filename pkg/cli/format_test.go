package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{850 * time.Millisecond, "850ms"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{125 * time.Second, "2m5.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatAgo(time.Time{}, now); got != "-" {
		t.Errorf("zero time = %q", got)
	}
	if got := FormatAgo(now.Add(-3*time.Second), now); got != "3.0s ago" {
		t.Errorf("FormatAgo = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false).Debug("hidden")
	NewLogger(&buf, false).Info("shown", "k", 1)
	NewLogger(&buf, true).Debug("debug shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "k=1") || !strings.Contains(out, "debug shown") {
		t.Errorf("log output = %q", out)
	}
}
