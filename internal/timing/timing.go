package timing

import (
	"fmt"
	"time"
)

// FormatDuration renders d as HH:MM:SS, the format used in run summaries.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatMillis is FormatDuration for millisecond counters such as
// ai.ModelMetrics.DurationMs.
func FormatMillis(ms int64) string {
	return FormatDuration(time.Duration(ms) * time.Millisecond)
}
