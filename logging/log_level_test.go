package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"verbose", zapcore.ErrorLevel},
		{"", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		if got := ParseLogLevelString(tt.input, zapcore.ErrorLevel); got != tt.want {
			t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDefaultLevel(t *testing.T) {
	if DefaultLevel(true) != zapcore.DebugLevel {
		t.Error("development default should be debug")
	}
	if DefaultLevel(false) != zapcore.InfoLevel {
		t.Error("production default should be info")
	}
}
