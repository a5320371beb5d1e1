package sdruntime

import (
	"errors"
	"math"
	"testing"
)

func seedPtr(v uint64) *uint64 { return &v }

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		params  GenerationParams
		wantErr bool
	}{
		{"fast default", DefaultParams(ModeFast), false},
		{"quality default", DefaultParams(ModeQuality), false},
		{"fast max steps", GenerationParams{Mode: ModeFast, NumImages: 4, Steps: 6}, false},
		{"fast steps too high", GenerationParams{Mode: ModeFast, NumImages: 1, Steps: 7}, true},
		{"fast steps zero", GenerationParams{Mode: ModeFast, NumImages: 1, Steps: 0}, true},
		{"fast with guidance", GenerationParams{Mode: ModeFast, NumImages: 1, Steps: 4, GuidanceScale: 7.5}, true},
		{"quality steps too low", GenerationParams{Mode: ModeQuality, NumImages: 1, Steps: 19, GuidanceScale: 8}, true},
		{"quality steps too high", GenerationParams{Mode: ModeQuality, NumImages: 1, Steps: 55, GuidanceScale: 8}, true},
		{"quality guidance low", GenerationParams{Mode: ModeQuality, NumImages: 1, Steps: 30, GuidanceScale: 4.5}, true},
		{"quality guidance high", GenerationParams{Mode: ModeQuality, NumImages: 1, Steps: 30, GuidanceScale: 12.5}, true},
		{"quality guidance NaN", GenerationParams{Mode: ModeQuality, NumImages: 1, Steps: 30, GuidanceScale: math.NaN()}, true},
		{"quality bounds", GenerationParams{Mode: ModeQuality, NumImages: 4, Steps: 50, GuidanceScale: 12}, false},
		{"zero images", GenerationParams{Mode: ModeFast, NumImages: 0, Steps: 4}, true},
		{"five images", GenerationParams{Mode: ModeFast, NumImages: 5, Steps: 4}, true},
		{"unknown mode", GenerationParams{Mode: "turbo", NumImages: 1, Steps: 4}, true},
		{"seed max", GenerationParams{Mode: ModeFast, NumImages: 1, Steps: 4, Seed: seedPtr(MaxSeed)}, false},
		{"seed too large", GenerationParams{Mode: ModeFast, NumImages: 1, Steps: 4, Seed: seedPtr(MaxSeed + 1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParams(tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
		})
	}
}

func TestNewGenerationParams_FastForcesZeroGuidance(t *testing.T) {
	p, err := NewGenerationParams(ModeFast, 2, 4, 9.5, nil)
	if err != nil {
		t.Fatalf("NewGenerationParams() error: %v", err)
	}
	if p.GuidanceScale != 0.0 {
		t.Errorf("GuidanceScale = %v, want 0.0", p.GuidanceScale)
	}
}

func TestNewGenerationParams_QualityKeepsGuidance(t *testing.T) {
	p, err := NewGenerationParams(ModeQuality, 1, 30, 8.0, seedPtr(7))
	if err != nil {
		t.Fatalf("NewGenerationParams() error: %v", err)
	}
	if p.GuidanceScale != 8.0 || *p.Seed != 7 {
		t.Errorf("unexpected params: %+v", p)
	}
}

func TestNewGenerationParams_RejectsOutOfRange(t *testing.T) {
	_, err := NewGenerationParams(ModeQuality, 1, 10, 8.0, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"fast", ModeFast, false},
		{"Turbo (Fast)", ModeFast, false},
		{"quality", ModeQuality, false},
		{"Quality (High Accuracy)", ModeQuality, false},
		{"Fast", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultParams(t *testing.T) {
	fast := DefaultParams(ModeFast)
	if fast.Steps != 4 || fast.GuidanceScale != 0 {
		t.Errorf("fast defaults = %+v", fast)
	}
	quality := DefaultParams(ModeQuality)
	if quality.Steps != 30 || quality.GuidanceScale != 8.0 {
		t.Errorf("quality defaults = %+v", quality)
	}
}
