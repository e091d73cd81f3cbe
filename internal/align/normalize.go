package align

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/maauso/reelsync/internal/timing"
)

// Shape identifies the layout of an aligner payload.
type Shape int

const (
	// ShapeUnknown is any payload that could not be classified.
	ShapeUnknown Shape = iota
	// ShapeList is a bare array of word records.
	ShapeList
	// ShapeWords is an object with a "words" array.
	ShapeWords
	// ShapeWordSegments is an object with a "word_segments" array.
	ShapeWordSegments
	// ShapeSegments is an object with "segments", each carrying "words".
	ShapeSegments
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeWords:
		return "words"
	case ShapeWordSegments:
		return "word_segments"
	case ShapeSegments:
		return "segments"
	default:
		return "unknown"
	}
}

type record map[string]json.RawMessage

// Normalize classifies an aligner payload and converts it into aligned
// words. Word records name their text "word" or "text" and carry either
// "start"/"end" or a [start, end] pair under "timestamp" or "span".
// Phonemes are read from "phones" or "phonemes"; each names its symbol
// "phone", "phoneme" or "label" and ends at "end" or "start"+"duration".
//
// Payloads that cannot be classified return ErrUnrecognizedShape. Word or
// phoneme records without times return ErrMissingTimes.
func Normalize(raw []byte) ([]timing.AlignedWord, Shape, error) {
	shape, records, err := classify(bytes.TrimSpace(raw))
	if err != nil {
		return nil, ShapeUnknown, err
	}

	words := make([]timing.AlignedWord, 0, len(records))
	for i, rec := range records {
		w, err := decodeWord(rec)
		if err != nil {
			return nil, shape, fmt.Errorf("word %d: %w", i+1, err)
		}
		words = append(words, w)
	}
	return words, shape, nil
}

func classify(raw []byte) (Shape, []record, error) {
	if len(raw) == 0 {
		return ShapeUnknown, nil, fmt.Errorf("%w: empty payload", ErrUnrecognizedShape)
	}

	switch raw[0] {
	case '[':
		recs, err := decodeRecords(raw)
		if err != nil {
			return ShapeUnknown, nil, err
		}
		return ShapeList, recs, nil
	case '{':
		var obj record
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ShapeUnknown, nil, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
		}
		if v, ok := obj["words"]; ok {
			recs, err := decodeRecords(v)
			return ShapeWords, recs, err
		}
		if v, ok := obj["word_segments"]; ok {
			recs, err := decodeRecords(v)
			return ShapeWordSegments, recs, err
		}
		if v, ok := obj["segments"]; ok {
			var segments []struct {
				Words []record `json:"words"`
			}
			if err := json.Unmarshal(v, &segments); err != nil {
				return ShapeUnknown, nil, fmt.Errorf("%w: segments: %v", ErrUnrecognizedShape, err)
			}
			var recs []record
			for _, seg := range segments {
				recs = append(recs, seg.Words...)
			}
			return ShapeSegments, recs, nil
		}
	}
	return ShapeUnknown, nil, ErrUnrecognizedShape
}

func decodeRecords(raw json.RawMessage) ([]record, error) {
	var recs []record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}
	return recs, nil
}

func decodeWord(rec record) (timing.AlignedWord, error) {
	text, _ := stringField(rec, "word", "text")
	w := timing.AlignedWord{Word: text}

	start, okStart := numberField(rec, "start")
	end, okEnd := numberField(rec, "end")
	if !okStart || !okEnd {
		start, end, okStart = pairField(rec, "timestamp", "span")
		if !okStart {
			return w, fmt.Errorf("%w: %q", ErrMissingTimes, text)
		}
	}
	w.Start, w.End = start, end

	raw, ok := firstField(rec, "phones", "phonemes")
	if !ok {
		return w, nil
	}
	var phones []record
	if err := json.Unmarshal(raw, &phones); err != nil {
		return w, fmt.Errorf("%w: phonemes of %q: %v", ErrUnrecognizedShape, text, err)
	}
	for _, p := range phones {
		symbol, _ := stringField(p, "phone", "phoneme", "label")
		ps, ok := numberField(p, "start")
		if !ok {
			return w, fmt.Errorf("%w: phoneme %q of %q", ErrMissingTimes, symbol, text)
		}
		pe, ok := numberField(p, "end")
		if !ok {
			d, okDur := numberField(p, "duration")
			if !okDur {
				return w, fmt.Errorf("%w: phoneme %q of %q", ErrMissingTimes, symbol, text)
			}
			pe = ps + d
		}
		w.Phonemes = append(w.Phonemes, timing.PhonemeTiming{Symbol: symbol, Start: ps, End: pe})
	}
	return w, nil
}

func firstField(rec record, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func stringField(rec record, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

func numberField(rec record, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		var f *float64
		if err := json.Unmarshal(v, &f); err == nil && f != nil {
			return *f, true
		}
	}
	return 0, false
}

func pairField(rec record, keys ...string) (float64, float64, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		var pair []*float64
		if err := json.Unmarshal(v, &pair); err == nil && len(pair) == 2 && pair[0] != nil && pair[1] != nil {
			return *pair[0], *pair[1], true
		}
	}
	return 0, 0, false
}
