package sdruntime

import (
	"context"
	"fmt"
	"image"
)

// Engine turns an EngineRequest into images. Implementations need not be
// safe for concurrent use; callers serialise access.
type Engine interface {
	// Generate returns exactly req.NumImages images or an error.
	Generate(ctx context.Context, req EngineRequest) ([]image.Image, error)
	// Name identifies the engine in logs and run metadata.
	Name() string
	// Close releases model resources.
	Close() error
}

// Synthesize invokes engine once and checks its output. Every failure is
// returned wrapped in ErrSynthesis, including a wrong number of images or a
// nil image.
func Synthesize(ctx context.Context, engine Engine, req EngineRequest) ([]image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	images, err := engine.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSynthesis, engine.Name(), err)
	}

	if len(images) != req.NumImages {
		return nil, fmt.Errorf("%w: %s returned %d images, want %d",
			ErrSynthesis, engine.Name(), len(images), req.NumImages)
	}
	for i, img := range images {
		if img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: %s returned an empty image at index %d",
				ErrSynthesis, engine.Name(), i)
		}
	}

	return images, nil
}
