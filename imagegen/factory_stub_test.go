//go:build !sd || !cgo || stub

package imagegen

import (
	"errors"
	"path/filepath"
	"testing"

	"text2image/core"
	"text2image/logging"
	"text2image/sdruntime"
)

func TestNewEngine_LocalWithoutBackend(t *testing.T) {
	cfg := &core.Config{Engine: core.EngineSD, SDModelPath: filepath.Join(t.TempDir(), "model.safetensors")}

	_, err := NewEngine(cfg, logging.NewNop())
	if !errors.Is(err, sdruntime.ErrBackendUnavailable) {
		t.Fatalf("NewEngine(sd) error = %v, want ErrBackendUnavailable", err)
	}
	if !errors.Is(err, sdruntime.ErrConfiguration) {
		t.Errorf("NewEngine(sd) error = %v, want ErrConfiguration", err)
	}
}
