package sdruntime

import "errors"

// Sentinel errors for SD runtime operations.
var (
	// ErrConfiguration marks an out-of-range or inconsistent parameter set.
	ErrConfiguration = errors.New("sdruntime: invalid generation configuration")

	// ErrSynthesis wraps every failure raised while the engine runs.
	ErrSynthesis = errors.New("sdruntime: image synthesis failed")

	// Model-related errors
	ErrModelNotFound   = errors.New("sdruntime: model file not found")
	ErrModelLoadFailed = errors.New("sdruntime: failed to load model")
	ErrModelCorrupted  = errors.New("sdruntime: model file is corrupted or invalid")

	// Generation errors
	ErrGenerationFailed = errors.New("sdruntime: image generation failed")
	ErrInvalidPrompt    = errors.New("sdruntime: invalid prompt")

	// ErrBackendUnavailable means the binary was built without the native
	// stable-diffusion library.
	ErrBackendUnavailable = errors.New("sdruntime: native backend unavailable")

	// ErrEngineClosed is returned by a LazyEngine after Close.
	ErrEngineClosed = errors.New("sdruntime: engine is closed")
)
