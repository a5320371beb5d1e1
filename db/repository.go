package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// sqliteTimeLayout matches datetime('now') so retention queries can compare
// stored values as text.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// RunRow is one generation run.
type RunRow struct {
	ID             string    `json:"id"`
	RunDir         string    `json:"run_dir"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt"`
	Mode           string    `json:"mode"`
	Style          string    `json:"style"`
	NumImages      int       `json:"num_images"`
	Steps          int       `json:"steps"`
	GuidanceScale  float64   `json:"guidance_scale"`
	Seed           *uint64   `json:"seed"`
	Engine         string    `json:"engine"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// ImageRow is one saved PNG/JPEG pair of a run. Index starts at 1.
type ImageRow struct {
	Index   int    `json:"index"`
	PNGPath string `json:"png"`
	JPGPath string `json:"jpg"`
}

// Run is a run with its images.
type Run struct {
	RunRow
	Images []ImageRow `json:"images"`
}

type runWrite struct {
	row    RunRow
	images []ImageRow
}

// RunRepository reads and writes run history.
//
// Writes may go through an AsyncWriter so that the request path does not
// wait for the database; see StartAsync.
type RunRepository struct {
	db     *Database
	writer *AsyncWriter[runWrite]
	logger *zap.Logger
}

// NewRunRepository creates a repository over database.
func NewRunRepository(database *Database, logger *zap.Logger) *RunRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRepository{db: database, logger: logger}
}

// StartAsync routes RecordRun through a background writer. Failed
// background writes are logged and dropped.
func (r *RunRepository) StartAsync(config AsyncWriterConfig) {
	r.writer = NewAsyncWriterWithConfig(func(op WriteOperation[runWrite]) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.InsertRun(ctx, op.Data.row, op.Data.images); err != nil {
			r.logger.Warn("failed to record run", zap.String("run_id", op.Data.row.ID), zap.Error(err))
			return err
		}
		return nil
	}, config)
	r.writer.Start()
}

// StopAsync drains queued writes, waiting at most timeout.
func (r *RunRepository) StopAsync(timeout time.Duration) bool {
	if r.writer == nil {
		return true
	}
	return r.writer.StopWithTimeout(timeout)
}

// RecordRun stores a run, asynchronously when StartAsync was called and
// the queue has room, synchronously otherwise. The returned ID is assigned
// here when row.ID is empty.
func (r *RunRepository) RecordRun(ctx context.Context, row RunRow, images []ImageRow) (string, error) {
	row = withDefaults(row)

	if r.writer != nil && r.writer.IsStarted() {
		if r.writer.Write(runWrite{row: row, images: images}) {
			return row.ID, nil
		}
		r.logger.Debug("async queue full, writing synchronously", zap.String("run_id", row.ID))
	}

	if err := r.InsertRun(ctx, row, images); err != nil {
		return "", err
	}
	return row.ID, nil
}

func withDefaults(row RunRow) RunRow {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	return row
}

// InsertRun stores row and its images in one transaction.
func (r *RunRepository) InsertRun(ctx context.Context, row RunRow, images []ImageRow) error {
	row = withDefaults(row)

	var seed any
	if row.Seed != nil {
		seed = int64(*row.Seed)
	}

	return r.db.withConn(func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (
				id, run_dir, prompt, negative_prompt, mode, style,
				num_images, steps, guidance_scale, seed, engine, elapsed_ms, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.RunDir, row.Prompt, row.NegativePrompt, row.Mode, row.Style,
			row.NumImages, row.Steps, row.GuidanceScale, seed, row.Engine, row.ElapsedMS,
			row.CreatedAt.UTC().Format(sqliteTimeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for _, img := range images {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO run_images (run_id, idx, png_path, jpg_path) VALUES (?, ?, ?, ?)`,
				row.ID, img.Index, img.PNGPath, img.JPGPath)
			if err != nil {
				return fmt.Errorf("failed to insert run image %d: %w", img.Index, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit run: %w", err)
		}
		return nil
	})
}

const selectRun = `
	SELECT id, run_dir, prompt, negative_prompt, mode, style,
	       num_images, steps, guidance_scale, seed, engine, elapsed_ms, created_at
	FROM runs`

// ListRecent returns up to limit runs, newest first. limit <= 0 means 20.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []RunRow
	err := r.db.withConn(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("failed to query runs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating runs: %w", err)
		}
		return nil
	})
	return runs, err
}

// GetRun returns the run with id and its images, or ErrNotFound.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.withConn(func(conn *sql.DB) error {
		row, err := scanRun(conn.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		run.RunRow = row

		rows, err := conn.QueryContext(ctx,
			`SELECT idx, png_path, jpg_path FROM run_images WHERE run_id = ? ORDER BY idx`, id)
		if err != nil {
			return fmt.Errorf("failed to query run images: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var img ImageRow
			if err := rows.Scan(&img.Index, &img.PNGPath, &img.JPGPath); err != nil {
				return fmt.Errorf("failed to scan run image: %w", err)
			}
			run.Images = append(run.Images, img)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CountRuns returns the number of stored runs.
func (r *RunRepository) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.withConn(func(conn *sql.DB) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (RunRow, error) {
	var run RunRow
	var seed sql.NullInt64
	var createdAt string

	err := s.Scan(&run.ID, &run.RunDir, &run.Prompt, &run.NegativePrompt, &run.Mode, &run.Style,
		&run.NumImages, &run.Steps, &run.GuidanceScale, &seed, &run.Engine, &run.ElapsedMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	if seed.Valid {
		v := uint64(seed.Int64)
		run.Seed = &v
	}
	run.CreatedAt, _ = time.ParseInLocation(sqliteTimeLayout, createdAt, time.UTC)
	return run, nil
}
