package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a cleanup operation.
type CleanupResult struct {
	// RunsDeleted is the number of runs removed; their images go with them
	RunsDeleted int64
	// Duration is how long the cleanup took
	Duration time.Duration
}

// Cleanup deletes runs older than retentionDays and runs VACUUM. Only the
// history rows are removed; files in the output directory are kept.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := d.withConn(func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM runs WHERE created_at < datetime('now', ?)`,
			fmt.Sprintf("-%d days", retentionDays))
		if err != nil {
			return fmt.Errorf("failed to delete old runs: %w", err)
		}
		result.RunsDeleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
		return nil
	})

	result.Duration = time.Since(start)
	return result, err
}

// CleanupSchedulerConfig holds configuration for the cleanup scheduler.
type CleanupSchedulerConfig struct {
	// RetentionDays is the number of days to retain runs
	RetentionDays int
	// Interval is how often to run cleanup
	Interval time.Duration
	// OnCleanup is called after each cleanup run (optional)
	OnCleanup func(result CleanupResult, err error)
}

// StartCleanupScheduler runs Cleanup immediately and then every
// config.Interval until ctx is cancelled.
func (d *Database) StartCleanupScheduler(ctx context.Context, config CleanupSchedulerConfig) {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}

	run := func() {
		result, err := d.Cleanup(ctx, config.RetentionDays)
		if config.OnCleanup != nil {
			config.OnCleanup(result, err)
		}
	}

	go func() {
		run()

		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
