package timing

// Punctuation marks recognised at the end of a token.
const (
	PunctNone     = ""
	PunctComma    = ","
	PunctPeriod   = "."
	PunctQuestion = "?"
	PunctBang     = "!"
	PunctEllipsis = "…"
)

// AllocatorConfig tunes the proportional fallback allocation.
type AllocatorConfig struct {
	// PunctWeights adds weight units for trailing punctuation.
	PunctWeights map[string]float64 `toml:"punct_weights"`
	// MaxHold caps the display hold added to punctuated words.
	MaxHold float64 `toml:"max_hold" validate:"gte=0"`
	// Epsilon floors the weight denominator.
	Epsilon float64 `toml:"epsilon" validate:"gt=0"`
}

// HoldConfig tunes the punctuation hold pass.
type HoldConfig struct {
	// MaxHold caps how far a word end is extended.
	MaxHold float64 `toml:"max_hold" validate:"gte=0"`
	// Margin is the minimum distance kept between a word end and the next start.
	Margin float64 `toml:"margin" validate:"gte=0"`
	// CommaGap is the inter-word gap from which a comma is inferred.
	CommaGap float64 `toml:"comma_gap" validate:"gt=0"`
	// PeriodGap is the inter-word gap from which a period is inferred.
	PeriodGap float64 `toml:"period_gap" validate:"gtfield=CommaGap"`
	// TranscriptEpsilon widens the sentence end when matching transcript entries.
	TranscriptEpsilon float64 `toml:"transcript_epsilon" validate:"gte=0"`
}

// LeadConfig tunes the highlight lead/compression pass.
type LeadConfig struct {
	Enabled bool `toml:"enabled"`
	// Lead shifts every highlight start earlier.
	Lead float64 `toml:"lead" validate:"gte=0"`
	// Compression scales the highlighted duration.
	Compression float64 `toml:"compression" validate:"gt=0,lte=1"`
	// Margin is kept between an adjusted end and the next adjusted start.
	Margin float64 `toml:"margin" validate:"gte=0"`
}

// Config holds every tunable used while building a Timeline.
type Config struct {
	// Speed is the playback speed factor applied to the concatenated audio.
	Speed     float64         `toml:"speed" validate:"gt=0"`
	Allocator AllocatorConfig `toml:"allocator"`
	Hold      HoldConfig      `toml:"hold"`
	Lead      LeadConfig      `toml:"lead"`
	// Transcript is the optional sentence-level transcript of the final audio.
	Transcript []TranscriptSentence `toml:"-"`
}

// DefaultPunctWeights returns the weight units added for each mark.
func DefaultPunctWeights() map[string]float64 {
	return map[string]float64{
		PunctComma:    0.5,
		PunctPeriod:   0.8,
		PunctQuestion: 0.8,
		PunctBang:     0.8,
		PunctEllipsis: 1.0,
	}
}

// DefaultConfig returns the empirically tuned defaults.
func DefaultConfig() Config {
	return Config{
		Speed: 1.05,
		Allocator: AllocatorConfig{
			PunctWeights: DefaultPunctWeights(),
			MaxHold:      0.18,
			Epsilon:      1e-6,
		},
		Hold: HoldConfig{
			MaxHold:           0.14,
			Margin:            0.02,
			CommaGap:          0.16,
			PeriodGap:         0.32,
			TranscriptEpsilon: 0.04,
		},
		Lead: LeadConfig{
			Enabled:     false,
			Lead:        0.08,
			Compression: 0.88,
			Margin:      0.02,
		},
	}
}

func (c AllocatorConfig) weight(punct string) float64 {
	if c.PunctWeights == nil {
		return DefaultPunctWeights()[punct]
	}
	return c.PunctWeights[punct]
}
