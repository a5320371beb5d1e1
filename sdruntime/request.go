package sdruntime

import "math/rand/v2"

// EngineRequest is what an Engine receives for one generation.
//
// NegativePrompt is meaningful only when HasNegative is set; Fast mode
// requests never carry one. Rand is non-nil exactly when Seed is set, and
// engines that draw their own noise should use it so that a fixed seed
// reproduces the same images.
type EngineRequest struct {
	Prompt         string
	NegativePrompt string
	HasNegative    bool
	NumImages      int
	GuidanceScale  float64
	Steps          int
	Mode           Mode
	Seed           *uint64
	Rand           *rand.Rand
}

// BuildEngineRequest applies the mode rules to params and returns the
// request to hand to the engine. params must already be valid.
//
//   - Fast: guidance 0.0, negative prompt dropped
//   - Quality: guidance and negative prompt passed through
func BuildEngineRequest(prompt, negativePrompt string, params GenerationParams) EngineRequest {
	req := EngineRequest{
		Prompt:    prompt,
		NumImages: params.NumImages,
		Steps:     params.Steps,
		Mode:      params.Mode,
	}

	if params.Mode == ModeQuality {
		req.GuidanceScale = params.GuidanceScale
		req.NegativePrompt = negativePrompt
		req.HasNegative = true
	}

	if params.Seed != nil {
		seed := *params.Seed
		req.Seed = &seed
		req.Rand = NewRand(seed)
	}

	return req
}
