package align

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/maauso/reelsync/internal/timing"
)

// Session is the alignment context of one synchronization run.
type Session struct {
	loader Loader
	logger *slog.Logger

	mu      sync.Mutex
	model   Model
	loadErr error
	aligned int
	total   int
}

// NewSession creates a Session backed by loader. A nil loader yields a
// session whose every attempt is StatusUnavailable.
func NewSession(loader Loader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{loader: loader, logger: logger}
}

// Align aligns one sentence against its clip. Calls are serialized; the
// model handle is loaded by the first call. A failed load makes every
// later attempt of the session StatusUnavailable.
func (s *Session) Align(ctx context.Context, text string, clip timing.AudioClipRef) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	res := s.align(ctx, text, clip)
	if res.Status == StatusAligned {
		s.aligned++
	} else {
		s.logger.Debug("alignment not used",
			slog.String("status", res.Status.String()),
			slog.String("clip", clip.Path),
			slog.String("reason", res.Reason),
		)
	}
	return res
}

func (s *Session) align(ctx context.Context, text string, clip timing.AudioClipRef) Result {
	if s.loader == nil {
		return Result{Status: StatusUnavailable, Reason: "no aligner configured"}
	}
	model, err := s.ensureModel(ctx)
	if err != nil {
		return Result{Status: StatusUnavailable, Reason: err.Error()}
	}

	text, _ = timing.NormalizeLine(text)
	want := len(timing.Tokenize(text))
	if want == 0 {
		return Result{Status: StatusInvalid, Reason: "sentence has no words"}
	}

	raw, err := model.Align(ctx, Request{Text: text, ClipPath: clip.Path, Duration: clip.DurationSeconds})
	if err != nil {
		return Result{Status: StatusUnavailable, Reason: err.Error()}
	}

	words, _, err := Normalize(raw)
	if err != nil {
		return Result{Status: StatusInvalid, Reason: err.Error()}
	}
	if len(words) != want {
		return Result{Status: StatusInvalid, Reason: fmt.Sprintf("aligner returned %d words, sentence has %d", len(words), want)}
	}
	words, err = validate(words, clip.DurationSeconds)
	if err != nil {
		return Result{Status: StatusInvalid, Reason: err.Error()}
	}
	return Result{Status: StatusAligned, Words: words}
}

func (s *Session) ensureModel(ctx context.Context) (Model, error) {
	if s.model != nil {
		return s.model, nil
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	m, err := s.loader.Load(ctx)
	if err != nil {
		s.loadErr = fmt.Errorf("load aligner: %w", err)
		s.logger.Warn("aligner unavailable, falling back to proportional timing", slog.String("error", err.Error()))
		return nil, s.loadErr
	}
	s.model = m
	s.logger.Info("aligner loaded")
	return m, nil
}

// Coverage returns how many attempts were aligned out of all attempts.
func (s *Session) Coverage() (aligned, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aligned, s.total
}

// CoveragePercent returns aligned/total as a percentage, 0 with no attempts.
func CoveragePercent(aligned, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(aligned) / float64(total)
}

// Close releases the model handle if it holds resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.model.(io.Closer)
	s.model = nil
	if !ok {
		return nil
	}
	return c.Close()
}

var errNotMonotonic = errors.New("aligned words are not monotonic")

// validate checks clip-local ordering and clamps times to the clip duration.
func validate(words []timing.AlignedWord, duration float64) ([]timing.AlignedWord, error) {
	out := make([]timing.AlignedWord, len(words))
	for i, w := range words {
		switch {
		case w.Start < 0:
			return nil, fmt.Errorf("%w: word %d starts before the clip", errNotMonotonic, i+1)
		case w.Start >= w.End:
			return nil, fmt.Errorf("%w: word %d has no duration", errNotMonotonic, i+1)
		case duration > 0 && w.Start >= duration:
			return nil, fmt.Errorf("%w: word %d starts after the clip", errNotMonotonic, i+1)
		case i > 0 && w.Start <= words[i-1].Start:
			return nil, fmt.Errorf("%w: word %d starts before word %d", errNotMonotonic, i+1, i)
		}

		w.End = clamp(w.End, duration)
		if len(w.Phonemes) > 0 {
			phones := make([]timing.PhonemeTiming, len(w.Phonemes))
			for j, p := range w.Phonemes {
				p.Start = math.Max(0, clamp(p.Start, duration))
				p.End = clamp(p.End, duration)
				phones[j] = p
			}
			w.Phonemes = phones
		}
		out[i] = w
	}
	return out, nil
}

func clamp(v, duration float64) float64 {
	if duration > 0 {
		return math.Min(v, duration)
	}
	return v
}
