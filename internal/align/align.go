// Package align adapts external forced aligners to the timing engine.
//
// A Session is created once per synchronization run and passed to every
// caller that needs alignment. It obtains the model handle from a Loader on
// first use, keeps it for the rest of the run, and serializes every call to
// it. Aligner failures never reach the caller: each attempt yields a Result
// whose Status says whether the words can be used.
package align

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/maauso/reelsync/internal/timing"
)

// Static errors for alignment adapters.
var (
	// ErrBaseURLRequired is returned when an HTTP loader has no base URL.
	ErrBaseURLRequired = errors.New("align: base URL is required")
	// ErrUnhealthy is returned when the aligner service reports it is not ready.
	ErrUnhealthy = errors.New("align: aligner is not healthy")
	// ErrServerError is returned when the aligner returns a 5xx status code.
	ErrServerError = errors.New("align: server error")
	// ErrRateLimited is returned when the aligner returns a 429 status code.
	ErrRateLimited = errors.New("align: rate limited")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("align: request failed")
	// ErrClipPathRequired is returned when a request does not locate its clip.
	ErrClipPathRequired = errors.New("align: clip path is required")
	// ErrNoAlignment is returned when no pre-computed alignment exists for a clip.
	ErrNoAlignment = errors.New("align: no alignment for clip")
	// ErrUnrecognizedShape is returned when a payload layout cannot be classified.
	ErrUnrecognizedShape = errors.New("align: unrecognized payload shape")
	// ErrMissingTimes is returned when a word record carries no usable times.
	ErrMissingTimes = errors.New("align: word has no timestamps")
)

// Status is the outcome of one alignment attempt.
type Status int

const (
	// StatusUnavailable means no aligner could be reached or it failed.
	StatusUnavailable Status = iota
	// StatusInvalid means the aligner answered with words that cannot be used.
	StatusInvalid
	// StatusAligned means the words passed validation and can replace allocation.
	StatusAligned
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAligned:
		return "aligned"
	case StatusInvalid:
		return "invalid"
	default:
		return "unavailable"
	}
}

// Result is the outcome of aligning one sentence.
type Result struct {
	Status Status
	// Words is set only when Status is StatusAligned. Times are relative to
	// the clip start and unscaled.
	Words []timing.AlignedWord
	// Reason describes why the words were not used.
	Reason string
}

// Request asks for the alignment of one sentence over its whole clip, sent
// as a single segment [0, Duration).
type Request struct {
	Text     string  `json:"text"`
	ClipPath string  `json:"-"`
	Duration float64 `json:"-"`
}

// Model is a loaded aligner handle. Align returns the raw aligner payload;
// interpreting it is left to Normalize.
type Model interface {
	Align(ctx context.Context, req Request) (json.RawMessage, error)
}

// Loader creates a Model. It is called at most once per Session.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}
