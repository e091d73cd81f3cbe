package subtitle

import (
	"fmt"
	"io"
	"math"

	"github.com/maauso/reelsync/internal/timing"
)

// WriteSRT writes one numbered block per sentence cue.
func WriteSRT(w io.Writer, sentences []timing.SentenceCue) error {
	for _, s := range sentences {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", s.Index, formatSRTTime(s.Start), formatSRTTime(s.End), s.Text); err != nil {
			return fmt.Errorf("write srt: %w", err)
		}
	}
	return nil
}

// formatSRTTime converts seconds to SRT time format HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	ms := int64(math.Round(math.Max(0, seconds) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
