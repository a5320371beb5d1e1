//go:build !sd || !cgo || stub

// Stub binding used when stable-diffusion.cpp is not linked.
// Build with CGO_ENABLED=1 and -tags sd for the real one.

package sdruntime

import "fmt"

const nativeLinked = false

func loadModelImpl(modelPath string) (*SDContext, error) {
	return nil, fmt.Errorf("%w: cannot load %s: stable-diffusion.cpp is not linked (build with CGO_ENABLED=1 -tags sd)",
		ErrBackendUnavailable, modelPath)
}

func generateImageImpl(ctx *SDContext, params NativeParams) ([]byte, error) {
	return nil, fmt.Errorf("%w: stable-diffusion.cpp is not linked", ErrBackendUnavailable)
}

func freeContextImpl(ctx *SDContext) {}

func getBackendInfoImpl() string {
	return "stub (no stable-diffusion.cpp library linked)"
}
