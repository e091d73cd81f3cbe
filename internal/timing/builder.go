package timing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Static errors for timeline construction.
var (
	// ErrCountMismatch is returned when script lines and clips cannot be paired.
	ErrCountMismatch = errors.New("timing: script line count does not match clip count")
	// ErrInvalidDuration is returned for clip durations that cannot form a span.
	ErrInvalidDuration = errors.New("timing: invalid clip duration")
	// ErrInvalidSpeed is returned when the speed factor is not positive.
	ErrInvalidSpeed = errors.New("timing: speed must be positive")
)

// Timeline is the result of one synchronization run.
type Timeline struct {
	// Sentences has one cue per script line, in script order.
	Sentences []SentenceCue
	// Words holds every word with punctuation holds applied.
	Words []WordTiming
	// Aligned counts sentences whose words came from accepted alignment.
	Aligned int

	base []WordTiming
	hold HoldConfig
}

// Pair zips script lines with their clips. The two sequences must have the
// same length; there is no sound way to infer correspondence otherwise.
func Pair(lines []ScriptLine, clips []AudioClipRef) ([]SentenceInput, error) {
	if len(lines) != len(clips) {
		return nil, fmt.Errorf("%w: %d lines, %d clips", ErrCountMismatch, len(lines), len(clips))
	}
	inputs := make([]SentenceInput, len(lines))
	for i := range lines {
		inputs[i] = SentenceInput{Line: lines[i], Clip: clips[i]}
	}
	return inputs, nil
}

// Build folds the prepared inputs into a Timeline in input order.
//
// The cursor accumulates unscaled clip durations; scaled times are derived
// from it for each sentence so rounding never compounds. Sentences with
// aligned words use them, rebased onto the sentence start; every other
// sentence is allocated proportionally.
func Build(inputs []SentenceInput, cfg Config) (*Timeline, error) {
	if !(cfg.Speed > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpeed, cfg.Speed)
	}

	tl := &Timeline{
		Sentences: make([]SentenceCue, 0, len(inputs)),
		hold:      cfg.Hold,
	}
	var synthesized []bool

	cursor := 0.0
	for i, in := range inputs {
		dur := in.Clip.DurationSeconds
		if math.IsNaN(dur) || math.IsInf(dur, 0) || dur <= 0 {
			return nil, fmt.Errorf("%w: line %d (%s) has duration %v", ErrInvalidDuration, i+1, in.Line.Speaker, dur)
		}

		text, appended := NormalizeLine(in.Line.Text)
		cue := SentenceCue{
			Index:   i + 1,
			Speaker: in.Line.Speaker,
			Start:   cursor / cfg.Speed,
			End:     (cursor + dur) / cfg.Speed,
			Text:    text,
		}
		cursor += dur

		tokens := Tokenize(text)
		var words []WordTiming
		if len(in.Aligned) > 0 && len(in.Aligned) == len(tokens) {
			words = rebase(in.Aligned, tokens, cue, cfg.Speed)
			tl.Aligned++
		} else {
			words = Allocate(tokens, cue.Start, cue.End, cue.Index, cfg.Allocator)
		}

		tl.Sentences = append(tl.Sentences, cue)
		tl.base = append(tl.base, words...)
		synthesized = append(synthesized, appended)
	}

	recoverTerminals(tl.base, tl.Sentences, synthesized, cfg)
	tl.Words = ApplyHolds(tl.base, cfg.Hold)
	return tl, nil
}

// Display returns the word timings used for highlight events: lead and
// compression first, punctuation holds second.
func (t *Timeline) Display(lead LeadConfig) []WordTiming {
	return ApplyHolds(ApplyLead(t.base, lead), t.hold)
}

// rebase maps aligned clip-local times onto the global timeline. Words take
// the tokenizer's text and punctuation; the last word ends on the sentence end.
func rebase(aligned []AlignedWord, tokens []WordToken, cue SentenceCue, speed float64) []WordTiming {
	global := func(local float64) float64 {
		return math.Min(cue.End, cue.Start+local/speed)
	}

	words := make([]WordTiming, len(aligned))
	for i, a := range aligned {
		w := WordTiming{
			Word:          tokens[i].Word,
			Start:         global(a.Start),
			End:           global(a.End),
			SentenceIndex: cue.Index,
			Punct:         tokens[i].Punct,
		}
		if len(a.Phonemes) > 0 {
			w.Phonemes = make([]PhonemeTiming, len(a.Phonemes))
			for j, p := range a.Phonemes {
				w.Phonemes[j] = PhonemeTiming{Symbol: p.Symbol, Start: global(p.Start), End: global(p.End)}
			}
		}
		words[i] = w
	}
	words[len(words)-1].End = cue.End
	return words
}

// recoverTerminals replaces synthesized sentence-ending periods with the
// mark found in the sentence transcript, when there is one.
func recoverTerminals(words []WordTiming, sentences []SentenceCue, synthesized []bool, cfg Config) {
	if len(cfg.Transcript) == 0 {
		return
	}
	last := make(map[int]int, len(sentences))
	for i, w := range words {
		last[w.SentenceIndex] = i
	}
	for i, s := range sentences {
		if !synthesized[i] {
			continue
		}
		wi, ok := last[s.Index]
		if !ok {
			continue
		}
		if mark := recoverTerminal(cfg.Transcript, s, cfg.Hold.TranscriptEpsilon); mark != PunctNone {
			words[wi].Punct = mark
			sentences[i].Text = strings.TrimSuffix(s.Text, PunctPeriod) + mark
		}
	}
}
