package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// FFprobeProber reads the container duration with ffprobe.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber.
// If ffprobePath is empty, it defaults to "ffprobe" (found in PATH).
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// Duration implements Prober.
func (p *FFprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, &ProbeError{Path: path, Stderr: stderr.String(), Err: err}
	}

	out := strings.TrimSpace(stdout.String())
	d, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnparseableDuration, out)}
	}
	return d, nil
}

// FFmpegProber reads the duration ffmpeg prints while decoding to a null
// sink. It serves hosts that ship ffmpeg without ffprobe.
type FFmpegProber struct {
	ffmpegPath string
}

// NewFFmpegProber creates a new FFmpegProber.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegProber(ffmpegPath string) *FFmpegProber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProber{ffmpegPath: ffmpegPath}
}

// Duration implements Prober.
func (p *FFmpegProber) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", path,
		"-hide_banner",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes the duration to stderr and may exit non-zero with a null output.
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return 0, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	}

	d, err := parseFFmpegDuration(stderr.String())
	if err != nil {
		if runErr != nil {
			err = fmt.Errorf("%w: %w", err, runErr)
		}
		return 0, &ProbeError{Path: path, Stderr: stderr.String(), Err: err}
	}
	return d, nil
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// parseFFmpegDuration extracts "Duration: HH:MM:SS.frac" from ffmpeg output.
func parseFFmpegDuration(output string) (float64, error) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, ErrUnparseableDuration
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat("0."+matches[4], 64)

	return hours*3600 + minutes*60 + seconds + frac, nil
}
