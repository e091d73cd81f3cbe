// Package transcript reads the optional sentence-level transcript of the
// final audio. Only the trailing punctuation of each entry is used
// downstream, to recover terminal marks the script did not carry.
//
// Accepted shapes:
//
//	[{"text": "...", "start": 0.0, "end": 1.2}, ...]
//	{"sentences": [...]}
//	{"segments": [...]}
//
// Anything else is classified as ShapeUnknown and treated as absent.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/maauso/reelsync/internal/timing"
)

// Shape identifies the top-level layout of a transcript document.
type Shape int

const (
	// ShapeUnknown is any layout that could not be classified.
	ShapeUnknown Shape = iota
	// ShapeList is a bare array of entries.
	ShapeList
	// ShapeSentences is an object with a "sentences" array.
	ShapeSentences
	// ShapeSegments is an object with a "segments" array.
	ShapeSegments
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeSentences:
		return "sentences"
	case ShapeSegments:
		return "segments"
	default:
		return "unknown"
	}
}

// Transcript is a classified transcript document.
type Transcript struct {
	Shape     Shape
	Sentences []timing.TranscriptSentence
	// Reason explains why the document was classified as unknown.
	Reason string
	// Skipped counts entries dropped for missing text or times.
	Skipped int
}

// Present reports whether the transcript carries usable entries.
func (t Transcript) Present() bool {
	return t.Shape != ShapeUnknown && len(t.Sentences) > 0
}

type entry struct {
	Text     *string  `json:"text"`
	Sentence *string  `json:"sentence"`
	Start    *float64 `json:"start"`
	End      *float64 `json:"end"`
}

// Parse classifies data and extracts its entries. It never fails: input it
// cannot classify yields a Transcript with ShapeUnknown and a Reason.
func Parse(data []byte) Transcript {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Transcript{Reason: "empty document"}
	}

	switch data[0] {
	case '[':
		return parseEntries(ShapeList, data)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return Transcript{Reason: fmt.Sprintf("invalid object: %v", err)}
		}
		if raw, ok := obj["sentences"]; ok {
			return parseEntries(ShapeSentences, raw)
		}
		if raw, ok := obj["segments"]; ok {
			return parseEntries(ShapeSegments, raw)
		}
		return Transcript{Reason: "object has neither sentences nor segments"}
	default:
		return Transcript{Reason: "document is neither a list nor an object"}
	}
}

func parseEntries(shape Shape, raw json.RawMessage) Transcript {
	var entries []entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Transcript{Reason: fmt.Sprintf("%s entries: %v", shape, err)}
	}

	t := Transcript{Shape: shape, Sentences: make([]timing.TranscriptSentence, 0, len(entries))}
	for _, e := range entries {
		text := e.Text
		if text == nil {
			text = e.Sentence
		}
		if text == nil || e.End == nil {
			t.Skipped++
			continue
		}
		s := timing.TranscriptSentence{Text: *text, End: *e.End}
		if e.Start != nil {
			s.Start = *e.Start
		}
		t.Sentences = append(t.Sentences, s)
	}
	return t
}

// ParseFile reads and classifies the transcript at path. Only read
// failures are returned as errors.
func ParseFile(path string) (Transcript, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	return Parse(data), nil
}
