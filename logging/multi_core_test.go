package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCoreWithWriters_DevelopmentConsole(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCoreWithWriters(zapcore.InfoLevel, zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), true)
	logger := zap.New(core)
	logger.Info("image saved", zap.String("file", "my_image_1.png"))
	_ = logger.Sync()

	if strings.HasPrefix(strings.TrimSpace(consoleBuf.String()), "{") {
		t.Errorf("development console output should not be JSON: %q", consoleBuf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(fileBuf.Bytes()), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["file"] != "my_image_1.png" {
		t.Errorf("file = %v, want my_image_1.png", entry["file"])
	}
}

func TestNewMultiCoreWithWriters_ProductionConsoleIsJSON(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCoreWithWriters(zapcore.InfoLevel, zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), false)
	logger := zap.New(core)
	logger.Info("ready")
	_ = logger.Sync()

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(consoleBuf.Bytes()), &entry); err != nil {
		t.Fatalf("console output is not JSON: %v", err)
	}
}

func TestGenerationFields_ToZapFields(t *testing.T) {
	seed := uint64(42)
	fields := GenerationFields{
		RunID:     "20260101_120000",
		Engine:    "procedural",
		Mode:      "fast",
		Steps:     4,
		NumImages: 2,
		Seed:      &seed,
		Duration:  1500 * time.Millisecond,
	}.ToZapFields()

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	if enc.Fields[FieldRunID] != "20260101_120000" {
		t.Errorf("run_id = %v", enc.Fields[FieldRunID])
	}
	if enc.Fields[FieldSeed] != uint64(42) {
		t.Errorf("seed = %v", enc.Fields[FieldSeed])
	}
	if enc.Fields[FieldDurationMS] != int64(1500) {
		t.Errorf("duration_ms = %v", enc.Fields[FieldDurationMS])
	}
	if _, ok := enc.Fields[FieldStyle]; ok {
		t.Error("empty style should be omitted")
	}
}
