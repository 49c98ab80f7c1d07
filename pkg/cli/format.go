package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats d as "850ms", "12.3s" or "4m5.0s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	return fmt.Sprintf("%dm%.1fs", mins, secs-float64(mins*60))
}

// FormatAgo formats the time elapsed from t to now, or "-" for a zero t.
func FormatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return FormatDuration(now.Sub(t).Round(time.Millisecond)) + " ago"
}
