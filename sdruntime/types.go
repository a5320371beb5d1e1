package sdruntime

import (
	"fmt"
	"math"
)

// Mode selects the model variant and its parameter regime.
type Mode string

const (
	// ModeFast is the few-step distilled model without guidance.
	ModeFast Mode = "fast"
	// ModeQuality is the full model with classifier-free guidance.
	ModeQuality Mode = "quality"
)

// Label returns the text shown in the UI for m.
func (m Mode) Label() string {
	switch m {
	case ModeFast:
		return "Turbo (Fast)"
	case ModeQuality:
		return "Quality (High Accuracy)"
	default:
		return string(m)
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFast || m == ModeQuality
}

// ParseMode accepts either the short name or the UI label.
func ParseMode(s string) (Mode, error) {
	switch s {
	case string(ModeFast), ModeFast.Label():
		return ModeFast, nil
	case string(ModeQuality), ModeQuality.Label():
		return ModeQuality, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrConfiguration, s)
	}
}

// Parameter ranges. The UI constrains inputs to these, and ValidateParams
// rejects anything outside them when the pipeline is driven directly.
const (
	MinImages = 1
	MaxImages = 4

	MinFastSteps     = 1
	MaxFastSteps     = 6
	DefaultFastSteps = 4

	MinQualitySteps     = 20
	MaxQualitySteps     = 50
	QualityStepSize     = 5
	DefaultQualitySteps = 30

	MinGuidance     = 5.0
	MaxGuidance     = 12.0
	GuidanceStep    = 0.5
	DefaultGuidance = 8.0

	MaxSeed     = 999999
	DefaultSeed = 42
)

// GenerationParams holds the numeric knobs of one generation.
// Seed is nil when the engine should use its own randomness.
type GenerationParams struct {
	Mode          Mode
	NumImages     int
	Steps         int
	GuidanceScale float64
	Seed          *uint64
}

// DefaultParams returns the UI defaults for mode with one image and no seed.
func DefaultParams(mode Mode) GenerationParams {
	if mode == ModeQuality {
		return GenerationParams{Mode: ModeQuality, NumImages: MinImages, Steps: DefaultQualitySteps, GuidanceScale: DefaultGuidance}
	}
	return GenerationParams{Mode: ModeFast, NumImages: MinImages, Steps: DefaultFastSteps}
}

// NewGenerationParams assembles and validates a parameter set. In Fast mode
// the supplied guidance is discarded and 0.0 is used.
func NewGenerationParams(mode Mode, numImages, steps int, guidance float64, seed *uint64) (GenerationParams, error) {
	if mode == ModeFast {
		guidance = 0.0
	}
	p := GenerationParams{
		Mode:          mode,
		NumImages:     numImages,
		Steps:         steps,
		GuidanceScale: guidance,
		Seed:          seed,
	}
	if err := ValidateParams(p); err != nil {
		return GenerationParams{}, err
	}
	return p, nil
}

// ValidateParams returns an error wrapping ErrConfiguration when p is out of
// range for its mode. This is a pure function with no side effects.
func ValidateParams(p GenerationParams) error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrConfiguration, p.Mode)
	}

	if p.NumImages < MinImages || p.NumImages > MaxImages {
		return fmt.Errorf("%w: num_images %d must be between %d and %d",
			ErrConfiguration, p.NumImages, MinImages, MaxImages)
	}

	switch p.Mode {
	case ModeFast:
		if p.Steps < MinFastSteps || p.Steps > MaxFastSteps {
			return fmt.Errorf("%w: steps %d must be between %d and %d in fast mode",
				ErrConfiguration, p.Steps, MinFastSteps, MaxFastSteps)
		}
		if p.GuidanceScale != 0 {
			return fmt.Errorf("%w: guidance_scale must be 0.0 in fast mode, got %.2f",
				ErrConfiguration, p.GuidanceScale)
		}
	case ModeQuality:
		if p.Steps < MinQualitySteps || p.Steps > MaxQualitySteps {
			return fmt.Errorf("%w: steps %d must be between %d and %d in quality mode",
				ErrConfiguration, p.Steps, MinQualitySteps, MaxQualitySteps)
		}
		if math.IsNaN(p.GuidanceScale) || p.GuidanceScale < MinGuidance || p.GuidanceScale > MaxGuidance {
			return fmt.Errorf("%w: guidance_scale %.2f must be between %.1f and %.1f",
				ErrConfiguration, p.GuidanceScale, MinGuidance, MaxGuidance)
		}
	}

	if p.Seed != nil && *p.Seed > MaxSeed {
		return fmt.Errorf("%w: seed %d must be between 0 and %d",
			ErrConfiguration, *p.Seed, MaxSeed)
	}

	return nil
}
