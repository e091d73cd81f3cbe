package timing

import "math"

// inferPunct guesses a mark from the silence before the next word.
func (c HoldConfig) inferPunct(gap float64) string {
	switch {
	case gap >= c.PeriodGap:
		return PunctPeriod
	case gap >= c.CommaGap:
		return PunctComma
	default:
		return PunctNone
	}
}

// holdEnd returns the end of a word that carries a punctuation mark and is
// followed by next within the same sentence. A word starting within the
// margin of next cannot honour the margin and a positive duration at once;
// it keeps its end, clamped to next.Start.
func (c HoldConfig) holdEnd(w, next WordTiming) float64 {
	gap := next.Start - w.End
	hold := math.Min(c.MaxHold, math.Max(0, gap-c.Margin))
	end := math.Min(w.End+hold, next.Start-c.Margin)
	if end <= w.Start {
		return math.Min(w.End, next.Start)
	}
	return end
}

// ApplyHolds decorates words with punctuation and extends punctuated word
// ends toward the next word of the same sentence, never closer than the
// configured margin. It returns a new slice; the input is not modified.
//
// A word keeps its own punctuation; otherwise a mark is inferred from the
// gap to the next word. Words without a following word in their sentence
// keep their end, so a sentence's last word stays on the sentence end.
// Words already extended by a previous pass are left alone, so applying
// it to its own output yields the same output. The marker is held in
// memory only: timings decoded from word_timestamps.json are already held
// and must not be passed through again, or their ends are extended twice.
// Words starting within the margin of the next word keep a positive
// duration instead of the margin.
func ApplyHolds(words []WordTiming, cfg HoldConfig) []WordTiming {
	out := make([]WordTiming, len(words))
	copy(out, words)

	for i := range out {
		if out[i].held || i+1 >= len(out) || out[i+1].SentenceIndex != out[i].SentenceIndex {
			continue
		}
		next := out[i+1]
		if out[i].Punct == PunctNone {
			out[i].Punct = cfg.inferPunct(next.Start - out[i].End)
		}
		if out[i].Punct == PunctNone {
			continue
		}
		out[i].End = cfg.holdEnd(out[i], next)
		out[i].held = true
	}
	return out
}

// ApplyLead shifts every start earlier and compresses each highlighted
// duration so the active word lights up slightly ahead of the audio.
// The shift never reorders words: a start that would land on or before the
// previous adjusted start keeps its original value. Adjusted ends never
// pass the next adjusted start minus the margin, except for words whose
// start is already within the margin of the next start; those end at the
// next start.
func ApplyLead(words []WordTiming, cfg LeadConfig) []WordTiming {
	out := make([]WordTiming, len(words))
	copy(out, words)
	if !cfg.Enabled {
		return out
	}

	for i := range out {
		out[i].Start = math.Max(0, words[i].Start-cfg.Lead)
		if i > 0 && out[i].Start <= out[i-1].Start {
			out[i].Start = words[i].Start
		}
		out[i].End = out[i].Start + (words[i].End-words[i].Start)*cfg.Compression
	}
	for i := 0; i+1 < len(out); i++ {
		limit := out[i+1].Start - cfg.Margin
		if out[i].End <= limit {
			continue
		}
		switch {
		case limit > out[i].Start:
			out[i].End = limit
		case out[i+1].Start > out[i].Start:
			out[i].End = math.Min(out[i].End, out[i+1].Start)
		}
	}
	return out
}

// recoverTerminal picks the terminal mark of the last transcript entry that
// ends within eps of the sentence end and after the sentence start.
func recoverTerminal(transcript []TranscriptSentence, s SentenceCue, eps float64) string {
	found := PunctNone
	bestEnd := math.Inf(-1)
	for _, t := range transcript {
		if t.End > s.End+eps || t.End <= s.Start {
			continue
		}
		if t.End >= bestEnd {
			bestEnd = t.End
			found = TerminalPunct(t.Text)
		}
	}
	return found
}
