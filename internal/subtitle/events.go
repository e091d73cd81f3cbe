// Package subtitle compiles word timings into caption artifacts: an SRT
// track with one block per sentence, an ASS track that highlights the
// active word inside a small window of words, and JSON timing documents.
package subtitle

import (
	"strings"

	"github.com/maauso/reelsync/internal/timing"
)

// DefaultWindowSize is the number of words shown together in a highlight event.
const DefaultWindowSize = 4

// Highlight markup wrapped around the active word.
const (
	highlightOn  = `{\b1\c&H00FF00&}`
	highlightOff = `{\b0\c&H00FFFFFF&}`
)

// Event is one highlight event: the window text shown while one of its
// words is active.
type Event struct {
	Start  float64
	End    float64
	Markup string
}

// Compile groups words into consecutive, disjoint windows of up to window
// words and emits one event per word. Each event spans its word's own
// display interval and shows the whole window with that word highlighted.
// A window smaller than 1 uses DefaultWindowSize.
func Compile(words []timing.WordTiming, window int) []Event {
	if window < 1 {
		window = DefaultWindowSize
	}

	events := make([]Event, 0, len(words))
	for i := 0; i < len(words); i += window {
		end := min(i+window, len(words))
		clump := words[i:end]

		texts := make([]string, len(clump))
		for k, w := range clump {
			texts[k] = sanitizeASS(w.Word + w.Punct)
		}

		for j, w := range clump {
			parts := make([]string, len(clump))
			for k, text := range texts {
				if k == j {
					parts[k] = highlightOn + text + highlightOff
				} else {
					parts[k] = text
				}
			}
			events = append(events, Event{
				Start:  w.Start,
				End:    w.End,
				Markup: strings.Join(parts, " "),
			})
		}
	}
	return events
}

// sanitizeASS keeps caption text from being read as override tags.
func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
