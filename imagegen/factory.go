// factory.go builds the process-wide engine handle selected by configuration.
package imagegen

import (
	"fmt"

	"text2image/core"
	"text2image/logging"
	"text2image/sdruntime"

	"go.uber.org/zap"
)

// NewEngine returns a lazily initialised engine for cfg.Engine. The
// underlying engine is built on first use and reused until Close.
func NewEngine(cfg *core.Config, logger *logging.Logger) (*sdruntime.LazyEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var factory sdruntime.EngineFactory
	switch cfg.Engine {
	case core.EngineProcedural:
		factory = func() (sdruntime.Engine, error) {
			return NewProceduralProvider(cfg.PreviewImageSize), nil
		}
	case core.EngineOpenAI:
		factory = func() (sdruntime.Engine, error) {
			return NewOpenAIProvider(cfg, logger)
		}
	case core.EngineSD:
		if err := sdruntime.CheckNativeBackend(); err != nil {
			return nil, fmt.Errorf("%w: %w", sdruntime.ErrConfiguration, err)
		}
		factory = func() (sdruntime.Engine, error) {
			return sdruntime.NewLocalEngine(cfg.SDModelPath, cfg.PreviewImageSize, logger.Named("sd").Zap())
		}
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", sdruntime.ErrConfiguration, cfg.Engine)
	}

	logger.Info("engine configured", zap.String(logging.FieldEngine, cfg.Engine))
	return sdruntime.NewLazyEngine(cfg.Engine, factory), nil
}
