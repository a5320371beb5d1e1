// Package sdruntime defines the contract between the generation pipeline and
// an image synthesis engine.
//
// It owns three things:
//
//   - the generation parameters (Mode, GenerationParams) and their validation
//   - the request actually handed to an engine (EngineRequest), including the
//     Fast/Quality asymmetry and the seeded random source
//   - the Engine capability itself, with a lazily initialised process-wide
//     handle (LazyEngine) and a local stable-diffusion binding (LocalEngine)
//
// # Modes
//
// Fast mode is a distilled few-step model run. It always uses guidance 0.0
// and never receives a negative prompt, whatever the caller supplied.
// Quality mode is a full classifier-free guidance run and passes both through.
//
// # Architecture
//
// Atoms (pure functions, no dependencies):
//   - ValidateParams, ValidatePrompt, ParseMode
//   - NewRand, RandomSeed
//   - IsPNG, DecodePNG, EncodePNG, ValidateImageData
//
// Molecules (compose atoms):
//   - NewGenerationParams, BuildEngineRequest
//   - LoadModel, GenerateImage, FreeContext (native binding)
//   - LazyEngine, LocalEngine, Synthesize
//
// # Build Tags
//
// The stable-diffusion.cpp binding is compiled only with CGO_ENABLED=1 and
// -tags sd (and without -tags stub). Every other build uses a stub whose
// LoadModel fails with ErrBackendUnavailable; CheckNativeBackend reports the
// same thing up front so the local engine is rejected at startup. Other
// engines live in the imagegen package.
//
// # Errors
//
// Callers branch on two sentinels:
//
//	if errors.Is(err, sdruntime.ErrConfiguration) {
//	    // caller supplied an impossible parameter combination
//	}
//	if errors.Is(err, sdruntime.ErrSynthesis) {
//	    // the engine failed; nothing was written
//	}
package sdruntime
