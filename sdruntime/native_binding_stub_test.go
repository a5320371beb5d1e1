//go:build !sd || !cgo || stub

package sdruntime

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNativeBackend_Unavailable(t *testing.T) {
	if NativeAvailable() {
		t.Fatal("NativeAvailable() = true in a build without the library")
	}
	err := CheckNativeBackend()
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("CheckNativeBackend() = %v, want ErrBackendUnavailable", err)
	}
	if !strings.Contains(err.Error(), "-tags sd") {
		t.Errorf("error %q does not name the sd build tag", err)
	}
}

func TestLoadModel_NoBackend(t *testing.T) {
	_, err := LoadModel(writeModel(t, "m.safetensors", "w"))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("LoadModel() error = %v, want ErrBackendUnavailable", err)
	}
	if err == nil || !strings.Contains(err.Error(), "-tags sd") {
		t.Errorf("error %v does not name the sd build tag", err)
	}
}

func TestNewLocalEngine_NoBackend(t *testing.T) {
	eng, err := NewLocalEngine(writeModel(t, "m.safetensors", "w"), 64, nil)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("NewLocalEngine() error = %v, want ErrBackendUnavailable", err)
	}
	if eng != nil {
		t.Error("expected nil engine")
	}
}

func TestLocalEngine_GenerateWithoutBackend(t *testing.T) {
	eng := &LocalEngine{sdCtx: &SDContext{id: 7, valid: true}, size: 64}
	_, err := Synthesize(context.Background(), eng, EngineRequest{Prompt: "a dog", NumImages: 1, Steps: 4, Mode: ModeFast})
	if !errors.Is(err, ErrSynthesis) || !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrSynthesis wrapping ErrBackendUnavailable", err)
	}
}
