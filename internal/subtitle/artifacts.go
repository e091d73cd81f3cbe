package subtitle

import (
	"bytes"
	"fmt"
	"io"

	"github.com/maauso/reelsync/internal/timing"
)

// Artifact file names.
const (
	SentenceMapFile    = "sentence_map.json"
	WordTimestampsFile = "word_timestamps.json"
	SRTFile            = "dialogue.srt"
	ASSFile            = "dialogue.ass"
)

// ArtifactNames lists every artifact a run produces, in publication order.
var ArtifactNames = []string{SentenceMapFile, WordTimestampsFile, SRTFile, ASSFile}

// Options controls artifact rendering.
type Options struct {
	WindowSize int
	Lead       timing.LeadConfig
	Style      Style
}

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render produces every artifact for a timeline. The highlight track uses
// the timeline's display timings; the JSON documents and the SRT track use
// the decorated word timings and sentence cues. A zero Style uses
// DefaultStyle.
func Render(tl *timing.Timeline, opts Options) ([]Artifact, error) {
	if opts.Style.FontName == "" {
		opts.Style = DefaultStyle()
	}
	events := Compile(tl.Display(opts.Lead), opts.WindowSize)

	writers := map[string]func(io.Writer) error{
		SentenceMapFile:    func(w io.Writer) error { return WriteSentenceMap(w, tl.Sentences) },
		WordTimestampsFile: func(w io.Writer) error { return WriteWordTimestamps(w, tl.Words) },
		SRTFile:            func(w io.Writer) error { return WriteSRT(w, tl.Sentences) },
		ASSFile:            func(w io.Writer) error { return WriteASS(w, events, opts.Style) },
	}

	artifacts := make([]Artifact, 0, len(ArtifactNames))
	for _, name := range ArtifactNames {
		var buf bytes.Buffer
		if err := writers[name](&buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		artifacts = append(artifacts, Artifact{Name: name, ContentType: ContentType(name), Data: buf.Bytes()})
	}
	return artifacts, nil
}

// ContentType returns the media type of a named artifact.
func ContentType(name string) string {
	switch name {
	case SentenceMapFile, WordTimestampsFile:
		return "application/json"
	case SRTFile:
		return "application/x-subrip"
	case ASSFile:
		return "text/x-ssa"
	default:
		return "application/octet-stream"
	}
}
