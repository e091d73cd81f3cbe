package subtitle

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reelsync/internal/timing"
)

func words(texts ...string) []timing.WordTiming {
	out := make([]timing.WordTiming, len(texts))
	for i, t := range texts {
		tok := timing.Tokenize(t)[0]
		out[i] = timing.WordTiming{
			Word:          tok.Word,
			Punct:         tok.Punct,
			Start:         float64(i) * 0.5,
			End:           float64(i)*0.5 + 0.4,
			SentenceIndex: 1,
		}
	}
	return out
}

func TestCompile_Windows(t *testing.T) {
	ws := words("Peter,", "you", "absolute", "walnut,", "that", "is", "wrong.")
	events := Compile(ws, 4)
	require.Len(t, events, 7)

	on, off := `{\b1\c&H00FF00&}`, `{\b0\c&H00FFFFFF&}`
	assert.Equal(t, on+"Peter,"+off+" you absolute walnut,", events[0].Markup)
	assert.Equal(t, "Peter, you absolute "+on+"walnut,"+off, events[3].Markup)
	// The second window holds only the remaining words.
	assert.Equal(t, on+"that"+off+" is wrong.", events[4].Markup)
	assert.Equal(t, "that is "+on+"wrong."+off, events[6].Markup)

	for i, e := range events {
		assert.Equal(t, ws[i].Start, e.Start)
		assert.Equal(t, ws[i].End, e.End)
	}
}

func TestCompile_DefaultWindow(t *testing.T) {
	events := Compile(words("a", "b", "c", "d", "e"), 0)
	require.Len(t, events, 5)
	assert.NotContains(t, events[4].Markup, "d")
	assert.Empty(t, Compile(nil, 4))
}

func TestSanitizeASS(t *testing.T) {
	assert.Equal(t, `(\\b1)hi`, sanitizeASS(`{\b1}hi`))
	assert.Equal(t, "two lines", sanitizeASS("two\nlines"))
}

func TestFormatTimes(t *testing.T) {
	tests := []struct {
		seconds float64
		srt     string
		ass     string
	}{
		{0, "00:00:00,000", "0:00:00.00"},
		{1.906, "00:00:01,906", "0:00:01.91"},
		{4.7619, "00:00:04,762", "0:00:04.76"},
		{1.3, "00:00:01,300", "0:00:01.30"},
		{59.9996, "00:01:00,000", "0:01:00.00"},
		{3723.5, "01:02:03,500", "1:02:03.50"},
		{-0.2, "00:00:00,000", "0:00:00.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.srt, formatSRTTime(tt.seconds), "srt %v", tt.seconds)
		assert.Equal(t, tt.ass, assTime(tt.seconds), "ass %v", tt.seconds)
	}
}

func TestWriteSRT(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSRT(&buf, []timing.SentenceCue{
		{Index: 1, Speaker: "Stewie", Start: 0, End: 1.905, Text: "Hello, world."},
		{Index: 2, Speaker: "Peter", Start: 1.905, End: 4.762, Text: "Why?"},
	})
	require.NoError(t, err)

	want := "1\n00:00:00,000 --> 00:00:01,905\nHello, world.\n\n" +
		"2\n00:00:01,905 --> 00:00:04,762\nWhy?\n\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteASS(t *testing.T) {
	var buf bytes.Buffer
	events := []Event{{Start: 0.5, End: 1.25, Markup: "hi"}}
	require.NoError(t, WriteASS(&buf, events, DefaultStyle()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[Script Info]\nScriptType: v4.00+\nPlayResX: 1080\nPlayResY: 1920\n"))
	assert.Contains(t, out, "Style: Default,Arial,64,&H00FFFFFF,&H000000FF,&H00000000,&H64000000,1,0,0,0,100,100,0,0,1,2,0,2,10,10,1200,1\n")
	assert.Contains(t, out, "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	assert.True(t, strings.HasSuffix(out, "Dialogue: 0,0:00:00.50,0:00:01.25,Default,,0,0,0,,hi\n"))
}

func TestWriteJSONDocuments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSentenceMap(&buf, []timing.SentenceCue{
		{Index: 1, Speaker: "Stewie", Start: 0, End: 1.9047619, Text: "Hello, world."},
	}))

	var sentences []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &sentences))
	require.Len(t, sentences, 1)
	assert.Equal(t, 1.905, sentences[0]["end"])
	assert.Equal(t, "Stewie", sentences[0]["speaker"])

	buf.Reset()
	require.NoError(t, WriteWordTimestamps(&buf, []timing.WordTiming{
		{Word: "Hello", Start: 0.00049, End: 0.88512, SentenceIndex: 1, Punct: ","},
		{Word: "world", Start: 0.88512, End: 1.9047619, SentenceIndex: 1, Punct: ".",
			Phonemes: []timing.PhonemeTiming{{Symbol: "W", Start: 0.88512, End: 0.99991}}},
	}))

	var ws []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ws))
	require.Len(t, ws, 2)
	assert.Equal(t, 0.0, ws[0]["start"])
	assert.Equal(t, 0.885, ws[0]["end"])
	assert.Equal(t, float64(1), ws[0]["sentence_index"])
	assert.Equal(t, ",", ws[0]["punct"])
	assert.NotContains(t, ws[0], "phonemes")

	phones, ok := ws[1]["phonemes"].([]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, phones[0].(map[string]any)["end"])
}

func TestRender(t *testing.T) {
	inputs, err := timing.Pair(
		[]timing.ScriptLine{{Speaker: "Stewie", Text: "Hello, world."}, {Speaker: "Peter", Text: "Why"}},
		[]timing.AudioClipRef{{DurationSeconds: 2}, {DurationSeconds: 1}},
	)
	require.NoError(t, err)
	tl, err := timing.Build(inputs, timing.DefaultConfig())
	require.NoError(t, err)

	artifacts, err := Render(tl, Options{WindowSize: 4})
	require.NoError(t, err)
	require.Len(t, artifacts, len(ArtifactNames))

	for i, a := range artifacts {
		assert.Equal(t, ArtifactNames[i], a.Name)
		assert.Equal(t, ContentType(a.Name), a.ContentType)
		assert.NotEmpty(t, a.Data)
	}
	assert.Contains(t, string(artifacts[2].Data), "Why.")
	assert.Equal(t, 3, strings.Count(string(artifacts[3].Data), "Dialogue:"))
	assert.Equal(t, "application/octet-stream", ContentType("other.bin"))
}
