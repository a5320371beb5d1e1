package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"text2image/core"
)

func validConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	return &core.Config{
		Host:              "127.0.0.1",
		Port:              8501,
		OutputDir:         filepath.Join(dir, "outputs"),
		Engine:            core.EngineProcedural,
		PreviewImageSize:  512,
		HistoryDBPath:     filepath.Join(dir, "data", "history.db"),
		GenerationTimeout: time.Minute,
	}
}

func TestValidationSuite_Passes(t *testing.T) {
	cfg := validConfig(t)
	var out bytes.Buffer

	result := NewValidationSuite(cfg).
		WithOutput(&out).
		WithEnvPath(filepath.Join(t.TempDir(), "missing.env")).
		WithEngineCheck(func() error { return nil }).
		Validate()

	if !result.Success {
		t.Fatalf("validation failed: %v\n%s", result.Err(), out.String())
	}
	if result.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1 for missing .env", result.Warnings)
	}
	if result.TotalSteps != 5 {
		t.Errorf("TotalSteps = %d, want 5", result.TotalSteps)
	}
	if _, err := os.Stat(cfg.OutputDir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
	if !strings.Contains(out.String(), "Validation Passed") {
		t.Errorf("summary missing:\n%s", out.String())
	}
}

func TestValidationSuite_ReportsFailures(t *testing.T) {
	cfg := validConfig(t)
	cfg.Engine = core.EngineOpenAI
	cfg.Port = 0
	engineErr := errors.New("engine unavailable")
	var out bytes.Buffer

	result := NewValidationSuite(cfg).
		WithOutput(&out).
		WithEngineCheck(func() error { return engineErr }).
		Validate()

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailedSteps != 2 {
		t.Errorf("FailedSteps = %d, want 2", result.FailedSteps)
	}
	if !errors.Is(result.Err(), engineErr) {
		t.Errorf("Err() = %v, want to include engine error", result.Err())
	}
	if !strings.Contains(out.String(), "PORT") || !strings.Contains(out.String(), "OPENAI_API_KEY") {
		t.Errorf("individual config problems not printed:\n%s", out.String())
	}
}

func TestValidationSuite_FailFast(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = -1

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithFailFast(true).
		Validate()

	if result.TotalSteps != 2 {
		t.Errorf("TotalSteps = %d, want 2 (stopped after config)", result.TotalSteps)
	}
}

func TestValidationSuite_HistoryDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.HistoryDBPath = ""

	result := NewValidationSuite(cfg).WithShowProgress(false).Validate()
	if result.Steps[3].Status != StepSkipped {
		t.Errorf("history step = %v, want skipped", result.Steps[3].Status)
	}
	if result.Steps[4].Status != StepSkipped {
		t.Errorf("engine step = %v, want skipped without check", result.Steps[4].Status)
	}
}

func TestCheckDirWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := CheckDirWritable(dir); err != nil {
		t.Fatalf("CheckDirWritable() error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0o644)
	if err := CheckDirWritable(file); err == nil {
		t.Error("expected error for a regular file")
	}
	if err := CheckDirWritable(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestCheckFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x")
	os.WriteFile(file, []byte("x"), 0o644)

	if err := CheckFileExists(file); err != nil {
		t.Errorf("CheckFileExists(file) = %v", err)
	}
	if err := CheckFileExists(dir); err == nil {
		t.Error("directory accepted as file")
	}
	if err := CheckFileExists(filepath.Join(dir, "nope")); err == nil {
		t.Error("missing file accepted")
	}
}
