package subtitle

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/maauso/reelsync/internal/timing"
)

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// WriteSentenceMap writes the sentence cues as an indented JSON array with
// times rounded to milliseconds.
func WriteSentenceMap(w io.Writer, sentences []timing.SentenceCue) error {
	out := make([]timing.SentenceCue, len(sentences))
	for i, s := range sentences {
		s.Start, s.End = round3(s.Start), round3(s.End)
		out[i] = s
	}
	return writeJSON(w, out)
}

// WriteWordTimestamps writes the word timings as an indented JSON array
// with times rounded to milliseconds.
func WriteWordTimestamps(w io.Writer, words []timing.WordTiming) error {
	out := make([]timing.WordTiming, len(words))
	for i, wt := range words {
		wt.Start, wt.End = round3(wt.Start), round3(wt.End)
		if len(wt.Phonemes) > 0 {
			phones := make([]timing.PhonemeTiming, len(wt.Phonemes))
			for j, p := range wt.Phonemes {
				p.Start, p.End = round3(p.Start), round3(p.End)
				phones[j] = p
			}
			wt.Phonemes = phones
		}
		out[i] = wt
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
