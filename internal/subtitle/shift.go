package subtitle

import (
	"time"

	"montaj/internal/models"
)

// Shift applies a time offset to every cue and clamps the result to the
// video: starts never go below zero, cues that begin at or past the video
// duration are dropped, ends are truncated to the duration, and cues left
// without any span are dropped. The survivors are renumbered. The returned
// count says how many cues were dropped.
func Shift(cues []models.Cue, offset, videoDuration time.Duration) ([]models.Cue, int) {
	kept := make([]models.Cue, 0, len(cues))
	for _, cue := range cues {
		start := cue.Start + offset
		if start < 0 {
			start = 0
		}
		if videoDuration > 0 && start >= videoDuration {
			continue
		}
		end := cue.End + offset
		if videoDuration > 0 && end > videoDuration {
			end = videoDuration
		}
		if end <= start {
			continue
		}
		kept = append(kept, models.Cue{Start: start, End: end, Text: cue.Text})
	}
	for i := range kept {
		kept[i].Index = i + 1
	}
	return kept, len(cues) - len(kept)
}
