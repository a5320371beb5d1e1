// generator.go implements the Generator organism that runs one request
// through the whole pipeline.
//
// This organism composes:
//   - policy: content gate
//   - prompt: final and negative prompt text
//   - sdruntime: parameter contract and the engine
//   - postprocess: watermark, run directory and files
//   - db: best-effort run history
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"text2image/db"
	"text2image/logging"
	"text2image/policy"
	"text2image/postprocess"
	"text2image/prompt"
	"text2image/sdruntime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPolicyRejection is returned when the prompt fails the content policy.
// Nothing is generated or written.
var ErrPolicyRejection = errors.New("prompt rejected by content policy")

// Request is one inbound generate action.
type Request struct {
	Prompt         string
	Style          prompt.Style
	Mode           sdruntime.Mode
	NumImages      int
	Steps          int
	GuidanceScale  float64
	UseSeed        bool
	Seed           uint64
	NegativePrompt string
	// Filename is the base name of the saved files; it is sanitised.
	Filename string
	// Progress receives the pre-generation progress estimate (optional).
	Progress ProgressFunc
}

// Result describes a completed run.
type Result struct {
	RunID          string
	Prompt         string
	NegativePrompt string
	Style          prompt.Style
	Params         sdruntime.GenerationParams
	Elapsed        time.Duration
	RunDir         string
	Saved          []postprocess.SavedImagePair
	Images         []image.Image
}

// RunRecorder stores run history. db.RunRepository satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, row db.RunRow, images []db.ImageRow) (string, error)
}

var _ RunRecorder = (*db.RunRepository)(nil)

const (
	// DefaultProgressTick paces the progress estimator between steps.
	DefaultProgressTick = 20 * time.Millisecond

	// DefaultProgressMaxDelay caps the total pacing added before the engine
	// call, whatever the step count.
	DefaultProgressMaxDelay = 250 * time.Millisecond
)

// GeneratorConfig holds configuration for the Generator.
type GeneratorConfig struct {
	// OutputDir is the root under which run directories are created
	OutputDir string

	// Timeout bounds the engine call (0 = no limit)
	Timeout time.Duration

	// ProgressTick is the pause between progress updates (0 = none)
	ProgressTick time.Duration

	// ProgressMaxDelay caps the summed pauses of one run
	// (0 = DefaultProgressMaxDelay, negative = no cap)
	ProgressMaxDelay time.Duration
}

// Generator runs generations one at a time against a shared engine.
//
// Thread-Safety: Generate is safe for concurrent use; callers queue on an
// internal semaphore and give up if their context ends first.
type Generator struct {
	engine    sdruntime.Engine
	finalizer *postprocess.Finalizer
	recorder  RunRecorder
	logger    *logging.Logger
	config    GeneratorConfig
	now       func() time.Time
	sem       chan struct{}
}

// NewGenerator creates a Generator. recorder may be nil to disable history.
func NewGenerator(engine sdruntime.Engine, finalizer *postprocess.Finalizer, recorder RunRecorder, logger *logging.Logger, config GeneratorConfig) (*Generator, error) {
	if engine == nil {
		return nil, fmt.Errorf("imagegen: engine cannot be nil")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("imagegen: finalizer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("imagegen: logger cannot be nil")
	}
	if config.OutputDir == "" {
		return nil, fmt.Errorf("imagegen: output directory cannot be empty")
	}

	return &Generator{
		engine:    engine,
		finalizer: finalizer,
		recorder:  recorder,
		logger:    logger.Named("generator"),
		config:    config,
		now:       time.Now,
		sem:       make(chan struct{}, 1),
	}, nil
}

// EngineName returns the name of the underlying engine.
func (g *Generator) EngineName() string {
	return g.engine.Name()
}

// Generate runs req through the pipeline:
//
//  1. blank prompt and content policy checks
//  2. final and negative prompts
//  3. parameter validation
//  4. progress estimate, then the engine call
//  5. run directory, metadata and image files
//  6. run history (failures are logged only)
//
// Errors wrap ErrPolicyRejection, sdruntime.ErrConfiguration,
// sdruntime.ErrSynthesis or postprocess.ErrPersistence. A persistence
// failure leaves any files already written in place.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is empty", sdruntime.ErrConfiguration)
	}

	if decision := policy.Evaluate(req.Prompt); !decision.Allowed {
		g.logger.Info("prompt rejected",
			zap.String(logging.FieldCategory, string(decision.Category)),
			zap.Bool("instruction", decision.Instruction))
		return nil, fmt.Errorf("%w: %s", ErrPolicyRejection, decision.Category)
	}

	style := req.Style
	if style == "" {
		style = prompt.StyleNone
	}
	fullPrompt := prompt.BuildPrompt(req.Prompt, style)
	negativePrompt := prompt.BuildNegativePrompt(req.NegativePrompt)

	var seed *uint64
	if req.UseSeed {
		s := req.Seed
		seed = &s
	}
	params, err := sdruntime.NewGenerationParams(req.Mode, req.NumImages, req.Steps, req.GuidanceScale, seed)
	if err != nil {
		return nil, err
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", sdruntime.ErrSynthesis, ctx.Err())
	}
	defer func() { <-g.sem }()

	runID := uuid.NewString()
	fields := logging.GenerationFields{
		RunID:     runID,
		Engine:    g.engine.Name(),
		Mode:      string(params.Mode),
		Style:     string(style),
		Steps:     params.Steps,
		Guidance:  params.GuidanceScale,
		NumImages: params.NumImages,
		Seed:      params.Seed,
	}
	g.logger.Info("generation started", fields.ToZapFields()...)

	start := g.now()
	estimator := NewProgressEstimator(params.Steps)
	estimator.Tick = g.config.ProgressTick
	estimator.MaxDelay = g.progressMaxDelay()
	if err := estimator.Run(ctx, start, req.Progress); err != nil {
		return nil, fmt.Errorf("%w: %w", sdruntime.ErrSynthesis, err)
	}

	images, err := g.synthesize(ctx, fullPrompt, negativePrompt, params)
	if err != nil {
		g.logger.Error("generation failed", append(fields.ToZapFields(), zap.Error(err))...)
		return nil, err
	}
	elapsed := g.now().Sub(start)

	runDir, err := postprocess.RunDir(g.config.OutputDir, g.now())
	if err != nil {
		return nil, err
	}
	saved, err := g.finalizer.Finalize(images, runDir, fullPrompt, negativePrompt, postprocess.Params{
		NumImages:     params.NumImages,
		GuidanceScale: params.GuidanceScale,
		Steps:         params.Steps,
		Style:         string(style),
		Seed:          params.Seed,
	}, req.Filename)
	if err != nil {
		g.logger.Error("saving images failed",
			zap.String(logging.FieldOutputDir, runDir),
			zap.Int("saved", len(saved)),
			zap.Error(err))
		return nil, err
	}

	fields.Duration = elapsed
	fields.OutputDir = runDir
	g.logger.Info("generation completed", fields.ToZapFields()...)

	g.record(ctx, runID, runDir, fullPrompt, negativePrompt, style, params, elapsed, saved)

	return &Result{
		RunID:          runID,
		Prompt:         fullPrompt,
		NegativePrompt: negativePrompt,
		Style:          style,
		Params:         params,
		Elapsed:        elapsed,
		RunDir:         runDir,
		Saved:          saved,
		Images:         images,
	}, nil
}

func (g *Generator) progressMaxDelay() time.Duration {
	switch {
	case g.config.ProgressMaxDelay < 0:
		return 0
	case g.config.ProgressMaxDelay == 0:
		return DefaultProgressMaxDelay
	default:
		return g.config.ProgressMaxDelay
	}
}

func (g *Generator) synthesize(ctx context.Context, fullPrompt, negativePrompt string, params sdruntime.GenerationParams) ([]image.Image, error) {
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}
	engineReq := sdruntime.BuildEngineRequest(fullPrompt, negativePrompt, params)
	return sdruntime.Synthesize(ctx, g.engine, engineReq)
}

func (g *Generator) record(ctx context.Context, runID, runDir, fullPrompt, negativePrompt string, style prompt.Style, params sdruntime.GenerationParams, elapsed time.Duration, saved []postprocess.SavedImagePair) {
	if g.recorder == nil {
		return
	}

	images := make([]db.ImageRow, 0, len(saved))
	for _, pair := range saved {
		images = append(images, db.ImageRow{Index: pair.Index, PNGPath: pair.PNG, JPGPath: pair.JPEG})
	}

	_, err := g.recorder.RecordRun(context.WithoutCancel(ctx), db.RunRow{
		ID:             runID,
		RunDir:         runDir,
		Prompt:         fullPrompt,
		NegativePrompt: negativePrompt,
		Mode:           string(params.Mode),
		Style:          string(style),
		NumImages:      params.NumImages,
		Steps:          params.Steps,
		GuidanceScale:  params.GuidanceScale,
		Seed:           params.Seed,
		Engine:         g.engine.Name(),
		ElapsedMS:      elapsed.Milliseconds(),
	}, images)
	if err != nil {
		g.logger.Warn("failed to record run history", zap.String(logging.FieldRunID, runID), zap.Error(err))
	}
}
