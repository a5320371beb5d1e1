//go:build !sd || !cgo || stub

package main

import (
	"errors"
	"path/filepath"
	"testing"

	"text2image/core"
	"text2image/logging"
	"text2image/sdruntime"
)

func TestStartupRejectsLocalEngineWithoutBackend(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Engine = core.EngineSD
	cfg.SDModelPath = filepath.Join(t.TempDir(), "model.safetensors")
	cfg.Port = 8501

	if code := runStartupValidation(cfg, "", logging.NewNop()); code != core.ExitCodeConfig {
		t.Errorf("runStartupValidation() = %d, want %d", code, core.ExitCodeConfig)
	}

	if _, err := newApp(cfg, logging.NewNop(), appOptions{}); !errors.Is(err, sdruntime.ErrBackendUnavailable) {
		t.Errorf("newApp() error = %v, want ErrBackendUnavailable", err)
	}
}
