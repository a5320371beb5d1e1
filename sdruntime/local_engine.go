package sdruntime

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// DefaultLocalImageSize is the square output size of the local engine.
const DefaultLocalImageSize = 512

// LocalEngine runs generations through the native stable-diffusion binding.
type LocalEngine struct {
	sdCtx  *SDContext
	size   int
	logger *zap.Logger
}

var _ Engine = (*LocalEngine)(nil)

// NewLocalEngine loads modelPath. size <= 0 selects DefaultLocalImageSize.
func NewLocalEngine(modelPath string, size int, logger *zap.Logger) (*LocalEngine, error) {
	if size <= 0 {
		size = DefaultLocalImageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdCtx, err := LoadModel(modelPath)
	if err != nil {
		return nil, err
	}

	logger.Info("local model loaded",
		zap.String("model_path", modelPath),
		zap.String("backend", GetBackendInfo()))

	return &LocalEngine{sdCtx: sdCtx, size: size, logger: logger}, nil
}

// Name implements Engine.
func (e *LocalEngine) Name() string {
	return "sd"
}

// Generate produces req.NumImages images, one native call each. With a
// fixed seed image i uses seed+i; otherwise a random base seed is drawn.
func (e *LocalEngine) Generate(ctx context.Context, req EngineRequest) ([]image.Image, error) {
	base := RandomSeed()
	if req.Seed != nil {
		base = *req.Seed
	}

	negative := ""
	if req.HasNegative {
		negative = req.NegativePrompt
	}

	images := make([]image.Image, 0, req.NumImages)
	for i := 0; i < req.NumImages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := GenerateImage(e.sdCtx, NativeParams{
			Prompt:         req.Prompt,
			NegativePrompt: negative,
			Width:          e.size,
			Height:         e.size,
			Steps:          req.Steps,
			CFGScale:       req.GuidanceScale,
			Seed:           int64(base) + int64(i),
		})
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}

		img, err := DecodePNG(data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		images = append(images, img)
	}

	return images, nil
}

// Close frees the native context.
func (e *LocalEngine) Close() error {
	FreeContext(e.sdCtx)
	return nil
}
