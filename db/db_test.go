package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedPtr(v uint64) *uint64 { return &v }

func TestDefaultConnectionConfig(t *testing.T) {
	config := DefaultConnectionConfig("/test/path.db")

	if config.BusyTimeout != 5000 {
		t.Errorf("BusyTimeout = %d, want 5000", config.BusyTimeout)
	}
	if config.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1", config.MaxOpenConns)
	}
}

func TestNewSQLiteConnection(t *testing.T) {
	ctx := context.Background()

	if _, err := NewSQLiteConnection(ctx, ConnectionConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	conn, err := NewSQLiteConnection(ctx, DefaultConnectionConfig(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteConnection() error = %v", err)
	}
	defer conn.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d (err %v), want 1", fk, err)
	}
	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q (err %v), want wal", mode, err)
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.db")

	if err := MigrateUp(ctx, path); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	// Second run has nothing to do.
	if err := MigrateUp(ctx, path); err != nil {
		t.Fatalf("second MigrateUp() error = %v", err)
	}

	version, dirty, err := MigrationVersion(ctx, path)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 false", version, dirty)
	}

	if err := MigrateDown(ctx, path, -1); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	version, _, err = MigrationVersion(ctx, path)
	if err != nil || version != 0 {
		t.Errorf("after down: version = %d err = %v, want 0", version, err)
	}
}

func TestRunRepository_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), zaptest.NewLogger(t))

	row := RunRow{
		RunDir:         "outputs/20240101_120000",
		Prompt:         "a cat, cartoon style",
		NegativePrompt: "blurry",
		Mode:           "quality",
		Style:          "Cartoon",
		NumImages:      2,
		Steps:          30,
		GuidanceScale:  7.5,
		Seed:           seedPtr(42),
		Engine:         "procedural",
		ElapsedMS:      1234,
	}
	images := []ImageRow{
		{Index: 1, PNGPath: "a_1.png", JPGPath: "a_1.jpg"},
		{Index: 2, PNGPath: "a_2.png", JPGPath: "a_2.jpg"},
	}

	id, err := repo.RecordRun(ctx, row, images)
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if id == "" {
		t.Fatal("RecordRun() returned empty id")
	}

	got, err := repo.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Prompt != row.Prompt || got.GuidanceScale != 7.5 || got.Mode != "quality" {
		t.Errorf("GetRun() = %+v", got.RunRow)
	}
	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("Seed = %v, want 42", got.Seed)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
	if len(got.Images) != 2 || got.Images[1].JPGPath != "a_2.jpg" {
		t.Errorf("Images = %+v", got.Images)
	}

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRunRepository_NullSeed(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	id, err := repo.RecordRun(ctx, RunRow{Prompt: "x", Mode: "fast", Style: "None", NumImages: 1, Steps: 4}, nil)
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	got, err := repo.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Seed != nil {
		t.Errorf("Seed = %v, want nil", *got.Seed)
	}
}

func TestRunRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		_, err := repo.RecordRun(ctx, RunRow{
			Prompt:    string(rune('a' + i)),
			Mode:      "fast",
			NumImages: 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, nil)
		if err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	if runs[0].Prompt != "e" || runs[2].Prompt != "c" {
		t.Errorf("order = %q %q %q, want e d c", runs[0].Prompt, runs[1].Prompt, runs[2].Prompt)
	}

	count, err := repo.CountRuns(ctx)
	if err != nil || count != 5 {
		t.Errorf("CountRuns() = %d, %v; want 5", count, err)
	}
}

func TestRunRepository_Async(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), zaptest.NewLogger(t))
	repo.StartAsync(DefaultAsyncWriterConfig())

	for range 3 {
		if _, err := repo.RecordRun(ctx, RunRow{Prompt: "p", Mode: "fast", NumImages: 1}, nil); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}
	if !repo.StopAsync(5 * time.Second) {
		t.Fatal("StopAsync() timed out")
	}

	count, err := repo.CountRuns(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountRuns() = %d, %v; want 3 after drain", count, err)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewRunRepository(database, nil)

	old := time.Now().Add(-40 * 24 * time.Hour)
	oldID, _ := repo.RecordRun(ctx, RunRow{Prompt: "old", CreatedAt: old},
		[]ImageRow{{Index: 1, PNGPath: "o.png", JPGPath: "o.jpg"}})
	newID, _ := repo.RecordRun(ctx, RunRow{Prompt: "new"}, nil)

	result, err := database.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if result.RunsDeleted != 1 {
		t.Errorf("RunsDeleted = %d, want 1", result.RunsDeleted)
	}
	if _, err := repo.GetRun(ctx, oldID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	if _, err := repo.GetRun(ctx, newID); err != nil {
		t.Errorf("new run removed: %v", err)
	}

	var images int
	database.DB().QueryRow(`SELECT COUNT(*) FROM run_images`).Scan(&images)
	if images != 0 {
		t.Errorf("run_images = %d, want 0 (cascade)", images)
	}

	if _, err := database.Cleanup(ctx, -1); err == nil {
		t.Error("expected error for negative retention")
	}
}

func TestDatabaseClose(t *testing.T) {
	database := openTestDB(t)
	if err := database.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := database.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after close = %v, want ErrClosed", err)
	}
	repo := NewRunRepository(database, nil)
	if _, err := repo.ListRecent(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("ListRecent() after close = %v, want ErrClosed", err)
	}
}

func TestAsyncWriter(t *testing.T) {
	var processed atomic.Int64
	writer := NewAsyncWriter(func(op WriteOperation[string]) error {
		processed.Add(1)
		return nil
	})
	writer.Start()
	writer.Start()

	for _, s := range []string{"a", "b", "c"} {
		if !writer.Write(s) {
			t.Errorf("Write(%q) = false", s)
		}
	}
	writer.Stop()

	if processed.Load() != 3 {
		t.Errorf("processed = %d, want 3", processed.Load())
	}
	if writer.Write("late") {
		t.Error("Write after Stop accepted")
	}
}

func TestAsyncWriter_ChannelFull(t *testing.T) {
	writer := NewAsyncWriterWithConfig(func(op WriteOperation[int]) error { return nil },
		AsyncWriterConfig{ChannelCapacity: 2})

	// Not started, so nothing drains the buffer.
	if !writer.Write(1) || !writer.Write(2) {
		t.Fatal("writes within capacity rejected")
	}
	if writer.Write(3) {
		t.Error("write beyond capacity accepted")
	}
	if writer.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", writer.Pending())
	}
}
