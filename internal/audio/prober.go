// Package audio measures the duration of synthesized dialogue clips.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Static errors for duration probing.
var (
	// ErrUnparseableDuration is returned when probe output holds no duration.
	ErrUnparseableDuration = errors.New("could not parse duration")
	// ErrUnknownClip is returned by StaticProber for paths it has no entry for.
	ErrUnknownClip = errors.New("no duration known for clip")
	// ErrNoProbers is returned by an empty ChainProber.
	ErrNoProbers = errors.New("no duration probers configured")
)

// Prober measures the duration of an audio file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ProbeError describes a failed external probe.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe %s: %v, stderr: %s", e.Path, e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// StaticProber returns durations that were measured elsewhere, keyed by path.
type StaticProber map[string]float64

// Duration implements Prober.
func (s StaticProber) Duration(_ context.Context, path string) (float64, error) {
	d, ok := s[path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownClip, path)
	}
	return d, nil
}

// ChainProber tries each prober in order and returns the first duration.
type ChainProber []Prober

// Duration implements Prober. When every prober fails the errors are joined.
func (c ChainProber) Duration(ctx context.Context, path string) (float64, error) {
	if len(c) == 0 {
		return 0, ErrNoProbers
	}
	var errs []error
	for _, p := range c {
		d, err := p.Duration(ctx, path)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return 0, err
		}
		errs = append(errs, err)
	}
	return 0, errors.Join(errs...)
}

// ListClips lists the .wav files in dir sorted by name. Clip files are
// named so that lexical order is script order.
func ListClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}

	var clips []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			clips = append(clips, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(clips)
	return clips, nil
}

// Verify interface implementation at compile time.
var (
	_ Prober = StaticProber(nil)
	_ Prober = ChainProber(nil)
	_ Prober = (*FFprobeProber)(nil)
	_ Prober = (*FFmpegProber)(nil)
)
