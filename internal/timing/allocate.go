package timing

import (
	"math"
	"strings"
	"unicode/utf8"
)

// trailingMarks lists punctuation that is split off the end of a token.
var trailingMarks = []string{PunctEllipsis, PunctComma, PunctPeriod, PunctQuestion, PunctBang}

// terminalMarks lists punctuation that can end a sentence.
var terminalMarks = []string{PunctPeriod, PunctQuestion, PunctBang, PunctEllipsis}

// Tokenize splits text on whitespace and strips one trailing punctuation
// mark per token. Tokens left empty after stripping are dropped.
func Tokenize(text string) []WordToken {
	fields := strings.Fields(text)
	tokens := make([]WordToken, 0, len(fields))
	for _, f := range fields {
		word, punct := splitTrailing(f)
		if word == "" {
			continue
		}
		tokens = append(tokens, WordToken{Word: word, Punct: punct})
	}
	return tokens
}

func splitTrailing(token string) (string, string) {
	for _, mark := range trailingMarks {
		if strings.HasSuffix(token, mark) {
			return strings.TrimSuffix(token, mark), mark
		}
	}
	return token, PunctNone
}

// TerminalPunct returns the sentence-ending mark text ends with, if any.
func TerminalPunct(text string) string {
	text = strings.TrimSpace(text)
	for _, mark := range terminalMarks {
		if strings.HasSuffix(text, mark) {
			return mark
		}
	}
	return PunctNone
}

// NormalizeLine trims text and appends a period when it does not already
// end in a terminal mark. The boolean reports whether one was appended.
func NormalizeLine(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if TerminalPunct(text) != PunctNone {
		return text, false
	}
	return text + PunctPeriod, true
}

func baseWeight(word string) float64 {
	return math.Max(1, float64(utf8.RuneCountInString(word)))
}

// Allocate spreads [start, end) over tokens in proportion to word length
// plus punctuation weight.
//
// Punctuated words get a display hold past their proportional end. The
// hold is not taken from the next word, which starts where the unextended
// word would have ended. The last word always ends at end.
func Allocate(tokens []WordToken, start, end float64, sentenceIndex int, cfg AllocatorConfig) []WordTiming {
	if len(tokens) == 0 {
		return nil
	}

	units := 0.0
	for _, t := range tokens {
		units += baseWeight(t.Word) + cfg.weight(t.Punct)
	}
	eps := cfg.Epsilon
	if eps <= 0 {
		eps = 1e-6
	}
	perUnit := (end - start) / math.Max(eps, units)

	words := make([]WordTiming, 0, len(tokens))
	cur := start
	for i, t := range tokens {
		baseEnd := cur + baseWeight(t.Word)*perUnit
		we := baseEnd
		if t.Punct != PunctNone {
			we += math.Min(cfg.MaxHold, cfg.weight(t.Punct)*perUnit)
		}
		if i == len(tokens)-1 {
			we = end
		}
		words = append(words, WordTiming{
			Word:          t.Word,
			Start:         cur,
			End:           we,
			SentenceIndex: sentenceIndex,
			Punct:         t.Punct,
		})
		cur = baseEnd
	}
	return words
}
