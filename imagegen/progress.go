// progress.go implements the cosmetic progress estimate shown while a
// generation is prepared. The loop does no work of its own and completes
// before the engine is called, so its figures are not a measurement of the
// engine.
package imagegen

import (
	"context"
	"time"
)

// ProgressUpdate is one tick of the estimate.
type ProgressUpdate struct {
	Step    int           `json:"step"`
	Total   int           `json:"total"`
	Percent int           `json:"percent"`
	Elapsed time.Duration `json:"elapsed"`
	ETA     time.Duration `json:"eta"`
}

// ProgressFunc receives progress updates. It must not block for long.
type ProgressFunc func(ProgressUpdate)

// ProgressEstimator produces Total updates. For update i (from 1),
// ETA = Elapsed/i * (Total-i).
type ProgressEstimator struct {
	Total int
	// Tick is an optional pause between updates.
	Tick time.Duration
	// MaxDelay caps the total pause across all updates (0 = no cap).
	MaxDelay time.Duration
	Now      func() time.Time
}

// NewProgressEstimator returns an estimator for steps updates.
func NewProgressEstimator(steps int) *ProgressEstimator {
	return &ProgressEstimator{Total: steps, Now: time.Now}
}

// Run emits every update to fn, starting the clock at start. It stops early
// only if ctx is cancelled.
func (e *ProgressEstimator) Run(ctx context.Context, start time.Time, fn ProgressFunc) error {
	if fn == nil || e.Total <= 0 {
		return nil
	}
	now := e.Now
	if now == nil {
		now = time.Now
	}
	tick := e.pause()

	for i := 1; i <= e.Total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		elapsed := now().Sub(start)
		avg := elapsed / time.Duration(i)
		fn(ProgressUpdate{
			Step:    i,
			Total:   e.Total,
			Percent: i * 100 / e.Total,
			Elapsed: elapsed,
			ETA:     avg * time.Duration(e.Total-i),
		})
		if tick > 0 && i < e.Total {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(tick):
			}
		}
	}
	return nil
}

// pause returns the per-update pause after applying MaxDelay.
func (e *ProgressEstimator) pause() time.Duration {
	if e.Tick <= 0 {
		return 0
	}
	if e.MaxDelay > 0 && e.Total > 1 {
		if limit := e.MaxDelay / time.Duration(e.Total-1); e.Tick > limit {
			return limit
		}
	}
	return e.Tick
}
