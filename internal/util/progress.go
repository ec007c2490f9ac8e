package util

import "fmt"

// RunProgress summarises how far an extraction run has come.
type RunProgress struct {
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Remaining  int    `json:"remaining"`
	Percentage int32  `json:"percentage"`
	Step       string `json:"step,omitempty"`
}

func BuildRunProgress(processed, total int) RunProgress {
	if total <= 0 {
		return RunProgress{Processed: processed}
	}
	processed = min(max(processed, 0), total)

	return RunProgress{
		Processed:  processed,
		Total:      total,
		Remaining:  total - processed,
		Percentage: int32(int64(processed) * 100 / int64(total)),
		Step:       fmt.Sprintf("%d/%d", processed, total),
	}
}
