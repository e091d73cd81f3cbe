// Package timing turns script lines and measured clip durations into
// sentence and word level timestamps.
//
// A Timeline is produced in two phases: per-sentence inputs (durations,
// optional alignment) are prepared independently, then folded in script
// order over a single running cursor. All values produced here are
// immutable once returned.
package timing

// ScriptLine is one spoken line of the dialogue script.
type ScriptLine struct {
	// Speaker is the character name that speaks the line.
	Speaker string `json:"speaker"`
	// Text is the raw line text as written in the script.
	Text string `json:"text"`
}

// AudioClipRef describes the synthesized clip for one script line.
type AudioClipRef struct {
	// Speaker is the character name the clip was rendered for.
	Speaker string `json:"speaker"`
	// Path locates the clip on disk. It may be empty when the duration
	// was injected directly.
	Path string `json:"path,omitempty"`
	// DurationSeconds is the measured clip length.
	DurationSeconds float64 `json:"duration_seconds"`
}

// WordToken is a whitespace token with its trailing punctuation split off.
type WordToken struct {
	Word  string
	Punct string
}

// SentenceCue is the time-coded span of one script line.
type SentenceCue struct {
	Index   int     `json:"index"`
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// PhonemeTiming is a sub-word pronunciation unit on the global timeline.
type PhonemeTiming struct {
	Symbol string  `json:"symbol"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// WordTiming is one word on the global timeline.
type WordTiming struct {
	Word          string          `json:"word"`
	Start         float64         `json:"start"`
	End           float64         `json:"end"`
	SentenceIndex int             `json:"sentence_index"`
	Punct         string          `json:"punct"`
	Phonemes      []PhonemeTiming `json:"phonemes,omitempty"`

	// held is set once a punctuation hold has been applied.
	held bool
}

// AlignedWord is a word timing reported by an external aligner, relative
// to the start of its clip and before speed scaling.
type AlignedWord struct {
	Word     string
	Start    float64
	End      float64
	Phonemes []PhonemeTiming
}

// TranscriptSentence is one entry of an optional sentence-level transcript
// of the final audio. Only its trailing punctuation is used.
type TranscriptSentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SentenceInput pairs a script line with its clip and, when alignment was
// accepted for it, the aligned words.
type SentenceInput struct {
	Line    ScriptLine
	Clip    AudioClipRef
	Aligned []AlignedWord
}
