package sdruntime

import (
	"fmt"
	"os"
)

// SDContext is an opaque handle to a loaded stable-diffusion model.
type SDContext struct {
	id        uint64
	modelPath string
	valid     bool
}

// IsValid returns whether this context is valid and usable.
func (c *SDContext) IsValid() bool {
	if c == nil {
		return false
	}
	return c.valid
}

// ModelPath returns the model path used to create this context.
func (c *SDContext) ModelPath() string {
	if c == nil {
		return ""
	}
	return c.modelPath
}

// NativeParams are the arguments of one native txt2img call.
type NativeParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Seed           int64
}

// NativeAvailable reports whether stable-diffusion.cpp is linked into this
// binary (built with CGO_ENABLED=1 and -tags sd).
func NativeAvailable() bool {
	return nativeLinked
}

// CheckNativeBackend returns ErrBackendUnavailable when the binary cannot
// run the local engine.
func CheckNativeBackend() error {
	if !nativeLinked {
		return fmt.Errorf("%w: rebuild with CGO_ENABLED=1 and -tags sd to use the local engine", ErrBackendUnavailable)
	}
	return nil
}

// LoadModel loads a model file and returns a context for generation.
//
// Errors:
//   - ErrModelNotFound: modelPath does not exist
//   - ErrModelLoadFailed: modelPath cannot be read or the library rejects it
//   - ErrModelCorrupted: the file's checksum does not match a known model
//   - ErrBackendUnavailable: no native library in this build
//
// The returned SDContext must be freed with FreeContext.
func LoadModel(modelPath string) (*SDContext, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	} else if err != nil {
		return nil, fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	if err := VerifyModelChecksum(modelPath); err != nil {
		return nil, err
	}

	return loadModelImpl(modelPath)
}

// GenerateImage runs one native txt2img call and returns PNG bytes.
func GenerateImage(ctx *SDContext, params NativeParams) ([]byte, error) {
	if ctx == nil || !ctx.valid {
		return nil, fmt.Errorf("%w: context is nil or invalid", ErrGenerationFailed)
	}
	if err := ValidatePrompt(params.Prompt); err != nil {
		return nil, err
	}
	if params.Width <= 0 || params.Height <= 0 || params.Steps <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d or steps %d",
			ErrGenerationFailed, params.Width, params.Height, params.Steps)
	}

	return generateImageImpl(ctx, params)
}

// FreeContext releases ctx. Nil and already-freed contexts are a no-op.
func FreeContext(ctx *SDContext) {
	if ctx == nil || !ctx.valid {
		return
	}
	freeContextImpl(ctx)
	ctx.valid = false
}

// GetBackendInfo describes the native compute backend.
func GetBackendInfo() string {
	return getBackendInfoImpl()
}
