package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/maauso/reelsync/internal/subtitle"
	"github.com/maauso/reelsync/internal/timing"
)

// ErrInvalidProfile is returned when a timing profile fails validation.
var ErrInvalidProfile = errors.New("config: invalid timing profile")

// Profile is the tunable timing and caption configuration of a run.
//
// A profile file is TOML; every key is optional and overrides the base it
// is loaded onto:
//
//	window_size = 3
//
//	[timing]
//	speed = 1.0
//
//	[timing.hold]
//	margin = 0.03
//
//	[style]
//	font_size = 72
type Profile struct {
	Timing     timing.Config  `toml:"timing"`
	WindowSize int            `toml:"window_size" validate:"gte=1"`
	Style      subtitle.Style `toml:"style"`
}

// DefaultProfile returns the built-in timing constants and caption style.
func DefaultProfile() Profile {
	return Profile{
		Timing:     timing.DefaultConfig(),
		WindowSize: subtitle.DefaultWindowSize,
		Style:      subtitle.DefaultStyle(),
	}
}

// Profile returns the run profile: defaults, then the environment
// settings, then the TIMING_PROFILE file when one is configured.
func (c *Config) Profile() (Profile, error) {
	p := DefaultProfile()
	p.Timing.Speed = c.Speed
	p.Timing.Lead.Enabled = c.LeadEnabled
	p.WindowSize = c.WindowSize

	if c.TimingProfile == "" {
		return p, p.Validate()
	}
	return LoadProfile(c.TimingProfile, p)
}

// LoadProfile decodes the TOML file at path over base and validates the
// result. Unknown keys are rejected.
func LoadProfile(path string, base Profile) (Profile, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from trusted configuration
	if err != nil {
		return Profile{}, fmt.Errorf("open timing profile: %w", err)
	}
	defer func() { _ = file.Close() }()

	p := base
	p.Timing.Allocator.PunctWeights = cloneWeights(base.Timing.Allocator.PunctWeights)

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("parse timing profile %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks every timing constant and style value.
func (p Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	for punct, w := range p.Timing.Allocator.PunctWeights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %v for %q", ErrInvalidProfile, w, punct)
		}
	}
	return nil
}

func cloneWeights(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
