// Package script parses dialogue script documents.
//
// A script is a JSON document of the form
//
//	{"characters": [{"name": "Stewie", "lines": ["...", "..."]}, ...]}
//
// Lines are ordered speaker-major: every line of the first character comes
// before the lines of the second, and so on. Clips are rendered in the same
// order, so the flattened line list pairs one-to-one with sorted clip files.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/reelsync/internal/timing"
)

// Static errors for script parsing.
var (
	// ErrNoCharacters is returned when a document has no characters.
	ErrNoCharacters = errors.New("script has no characters")
	// ErrMissingName is returned when a character has no name.
	ErrMissingName = errors.New("script character has no name")
)

// Character is one speaker and the lines they speak, in order.
type Character struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// Document is a parsed dialogue script.
type Document struct {
	Title      string      `json:"title,omitempty"`
	Characters []Character `json:"characters"`
}

// Parse decodes a script document from r.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if len(doc.Characters) == 0 {
		return nil, ErrNoCharacters
	}
	for i, c := range doc.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("%w: character %d", ErrMissingName, i+1)
		}
	}
	return &doc, nil
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Lines flattens the document into script lines, speaker-major.
func (d *Document) Lines() []timing.ScriptLine {
	var lines []timing.ScriptLine
	for _, c := range d.Characters {
		for _, l := range c.Lines {
			lines = append(lines, timing.ScriptLine{Speaker: c.Name, Text: strings.TrimSpace(l)})
		}
	}
	return lines
}

// Speakers returns character names in order of first appearance.
func (d *Document) Speakers() []string {
	seen := make(map[string]bool, len(d.Characters))
	var names []string
	for _, c := range d.Characters {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	return names
}

// ClipFileName returns the conventional file name of the clip rendered for
// the line at the 1-based index.
func ClipFileName(index int, speaker string) string {
	return fmt.Sprintf("%02d_%s.wav", index, speaker)
}

// SpeakerFromClip extracts the speaker from a conventional clip file name.
// It returns "" when the name does not follow the convention.
func SpeakerFromClip(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix, speaker, ok := strings.Cut(stem, "_")
	if !ok || prefix == "" || strings.Trim(prefix, "0123456789") != "" {
		return ""
	}
	return speaker
}
