package imagegen

import (
	"context"
	"errors"
	"testing"

	"text2image/core"
	"text2image/logging"
	"text2image/sdruntime"
)

func TestNewEngine(t *testing.T) {
	logger := logging.NewNop()

	if _, err := NewEngine(nil, logger); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewEngine(&core.Config{Engine: "dream"}, logger); !errors.Is(err, sdruntime.ErrConfiguration) {
		t.Errorf("unknown engine error = %v, want ErrConfiguration", err)
	}

	engine, err := NewEngine(&core.Config{Engine: core.EngineProcedural, PreviewImageSize: 32}, logger)
	if err != nil {
		t.Fatalf("NewEngine(procedural) error = %v", err)
	}
	defer engine.Close()
	if engine.Loaded() {
		t.Error("engine loaded before first use")
	}
	images, err := engine.Generate(context.Background(), seededRequest("x", 3, 1))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if images[0].Bounds().Dx() != 32 {
		t.Errorf("width = %d, want 32", images[0].Bounds().Dx())
	}
	if engine.Name() != "procedural" {
		t.Errorf("Name() = %q", engine.Name())
	}
}

func TestNewEngine_LoadFailures(t *testing.T) {
	logger := logging.NewNop()

	openai, err := NewEngine(&core.Config{Engine: core.EngineOpenAI}, logger)
	if err != nil {
		t.Fatalf("NewEngine(openai) error = %v", err)
	}
	if err := openai.Load(); err == nil {
		t.Error("expected load error without an API key")
	}
}
