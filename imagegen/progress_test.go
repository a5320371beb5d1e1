package imagegen

import (
	"context"
	"testing"
	"time"
)

// stepClock advances by one second per call.
func stepClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func TestProgressEstimator_Run(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &ProgressEstimator{Total: 4, Now: stepClock(start)}

	var updates []ProgressUpdate
	if err := e.Run(context.Background(), start, func(u ProgressUpdate) { updates = append(updates, u) }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(updates) != 4 {
		t.Fatalf("got %d updates, want 4", len(updates))
	}
	// Each tick is one second apart, so the average step time is 1s.
	wantETA := []time.Duration{3 * time.Second, 2 * time.Second, time.Second, 0}
	wantPct := []int{25, 50, 75, 100}
	for i, u := range updates {
		if u.Step != i+1 || u.Total != 4 {
			t.Errorf("update %d: step %d/%d", i, u.Step, u.Total)
		}
		if u.ETA != wantETA[i] {
			t.Errorf("update %d: ETA = %v, want %v", i, u.ETA, wantETA[i])
		}
		if u.Percent != wantPct[i] {
			t.Errorf("update %d: Percent = %d, want %d", i, u.Percent, wantPct[i])
		}
	}
}

func TestProgressEstimator_NilCallbackAndCancel(t *testing.T) {
	e := NewProgressEstimator(10)
	if err := e.Run(context.Background(), time.Now(), nil); err != nil {
		t.Errorf("Run(nil) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := e.Run(ctx, time.Now(), func(ProgressUpdate) {
		calls++
		if calls == 2 {
			cancel()
		}
	})
	if err == nil || calls != 2 {
		t.Errorf("Run() = %v after %d calls, want cancellation after 2", err, calls)
	}
}

func TestProgressEstimator_Pause(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		tick     time.Duration
		maxDelay time.Duration
		want     time.Duration
	}{
		{"no tick", 30, 0, time.Second, 0},
		{"uncapped", 30, 50 * time.Millisecond, 0, 50 * time.Millisecond},
		{"under cap", 5, 20 * time.Millisecond, 250 * time.Millisecond, 20 * time.Millisecond},
		{"capped quality run", 51, 50 * time.Millisecond, 250 * time.Millisecond, 5 * time.Millisecond},
		{"single step", 1, 50 * time.Millisecond, 10 * time.Millisecond, 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ProgressEstimator{Total: tt.total, Tick: tt.tick, MaxDelay: tt.maxDelay}
			if got := e.pause(); got != tt.want {
				t.Errorf("pause() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressEstimator_TotalDelayIsCapped(t *testing.T) {
	e := &ProgressEstimator{Total: 50, Tick: time.Second, MaxDelay: 100 * time.Millisecond}

	calls := 0
	begin := time.Now()
	if err := e.Run(context.Background(), begin, func(ProgressUpdate) { calls++ }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 50 {
		t.Errorf("calls = %d, want 50", calls)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("Run took %v with a 100ms cap", elapsed)
	}
}
