package logging

import (
	"time"

	"go.uber.org/zap"
)

// Field keys shared by generation log entries so that log queries can
// filter on the same names across packages.
const (
	FieldRunID      = "run_id"
	FieldEngine     = "engine"
	FieldMode       = "mode"
	FieldStyle      = "style"
	FieldSteps      = "steps"
	FieldGuidance   = "guidance_scale"
	FieldNumImages  = "num_images"
	FieldSeed       = "seed"
	FieldDurationMS = "duration_ms"
	FieldOutputDir  = "output_dir"
	FieldCategory   = "category"
)

// GenerationFields describes one generation run for logging.
type GenerationFields struct {
	RunID     string
	Engine    string
	Mode      string
	Style     string
	Steps     int
	Guidance  float64
	NumImages int
	Seed      *uint64
	Duration  time.Duration
	OutputDir string
}

// ToZapFields converts g into zap fields. Zero-valued optional fields are
// omitted.
func (g GenerationFields) ToZapFields() []zap.Field {
	fields := make([]zap.Field, 0, 10)
	if g.RunID != "" {
		fields = append(fields, zap.String(FieldRunID, g.RunID))
	}
	if g.Engine != "" {
		fields = append(fields, zap.String(FieldEngine, g.Engine))
	}
	if g.Mode != "" {
		fields = append(fields, zap.String(FieldMode, g.Mode))
	}
	if g.Style != "" {
		fields = append(fields, zap.String(FieldStyle, g.Style))
	}
	fields = append(fields,
		zap.Int(FieldSteps, g.Steps),
		zap.Float64(FieldGuidance, g.Guidance),
		zap.Int(FieldNumImages, g.NumImages),
	)
	if g.Seed != nil {
		fields = append(fields, zap.Uint64(FieldSeed, *g.Seed))
	}
	if g.Duration > 0 {
		fields = append(fields, zap.Int64(FieldDurationMS, g.Duration.Milliseconds()))
	}
	if g.OutputDir != "" {
		fields = append(fields, zap.String(FieldOutputDir, g.OutputDir))
	}
	return fields
}
