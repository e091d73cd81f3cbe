package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reelsync/internal/timing"
)

func TestNormalize_Shapes(t *testing.T) {
	want := []timing.AlignedWord{
		{Word: "hello", Start: 0.1, End: 0.5},
		{Word: "world", Start: 0.6, End: 1.2},
	}

	tests := []struct {
		name  string
		input string
		shape Shape
	}{
		{
			name:  "bare list",
			input: `[{"word":"hello","start":0.1,"end":0.5},{"word":"world","start":0.6,"end":1.2}]`,
			shape: ShapeList,
		},
		{
			name:  "words with text key",
			input: `{"words":[{"text":"hello","start":0.1,"end":0.5},{"text":"world","start":0.6,"end":1.2}]}`,
			shape: ShapeWords,
		},
		{
			name:  "word segments",
			input: `{"word_segments":[{"word":"hello","start":0.1,"end":0.5,"score":0.9},{"word":"world","start":0.6,"end":1.2}]}`,
			shape: ShapeWordSegments,
		},
		{
			name:  "nested segments",
			input: `{"segments":[{"text":"hello","words":[{"word":"hello","start":0.1,"end":0.5}]},{"words":[{"word":"world","start":0.6,"end":1.2}]}]}`,
			shape: ShapeSegments,
		},
		{
			name:  "timestamp pairs",
			input: `[{"word":"hello","timestamp":[0.1,0.5]},{"word":"world","span":[0.6,1.2]}]`,
			shape: ShapeList,
		},
		{
			name:  "null times fall back to pair",
			input: `[{"word":"hello","start":null,"end":null,"timestamp":[0.1,0.5]},{"word":"world","start":0.6,"end":1.2}]`,
			shape: ShapeList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, shape, err := Normalize([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, shape)
			assert.Equal(t, want, words)
		})
	}
}

func TestNormalize_Phonemes(t *testing.T) {
	input := `{"words":[{"word":"hi","start":0.0,"end":0.4,"phones":[
		{"phone":"HH","start":0.0,"end":0.1},
		{"label":"AY","start":0.1,"duration":0.3}
	]},{"word":"you","start":0.5,"end":0.8,"phonemes":[{"phoneme":"Y","start":0.5,"end":0.6}]}]}`

	words, shape, err := Normalize([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, ShapeWords, shape)
	require.Len(t, words, 2)

	require.Len(t, words[0].Phonemes, 2)
	assert.Equal(t, "HH", words[0].Phonemes[0].Symbol)
	assert.Equal(t, "AY", words[0].Phonemes[1].Symbol)
	assert.InDelta(t, 0.4, words[0].Phonemes[1].End, 1e-9)
	assert.Equal(t, []timing.PhonemeTiming{{Symbol: "Y", Start: 0.5, End: 0.6}}, words[1].Phonemes)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrUnrecognizedShape},
		{name: "scalar", input: `"text"`, wantErr: ErrUnrecognizedShape},
		{name: "unknown object", input: `{"result":[]}`, wantErr: ErrUnrecognizedShape},
		{name: "list of numbers", input: `[1,2]`, wantErr: ErrUnrecognizedShape},
		{name: "broken json", input: `{"words":[`, wantErr: ErrUnrecognizedShape},
		{name: "word without times", input: `[{"word":"1984"}]`, wantErr: ErrMissingTimes},
		{name: "short pair", input: `[{"word":"a","timestamp":[0.1]}]`, wantErr: ErrMissingTimes},
		{name: "phoneme without end", input: `[{"word":"a","start":0,"end":1,"phones":[{"phone":"AH","start":0}]}]`, wantErr: ErrMissingTimes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize([]byte(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "word_segments", ShapeWordSegments.String())
	assert.Equal(t, "unknown", Shape(42).String())
}
