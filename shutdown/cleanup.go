package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"text2image/postprocess"

	"go.uber.org/zap"
)

// PruneEmptyRunDirs returns a cleanup step that removes run directories
// under outputDir that hold no files. A run whose first image write failed
// leaves such a directory behind. Failures are logged, never returned.
func PruneEmptyRunDirs(logger *zap.Logger, outputDir string) Func {
	return func(ctx context.Context) error {
		runs, err := postprocess.ListRunDirs(outputDir)
		if err != nil {
			logger.Warn("listing run directories failed", zap.String("dir", outputDir), zap.Error(err))
			return nil
		}

		removed := 0
		for _, run := range runs {
			if ctx.Err() != nil {
				logger.Warn("shutdown deadline reached while pruning run directories", zap.Int("removed", removed))
				return nil
			}

			dir := filepath.Join(outputDir, run)
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) > 0 {
				continue
			}
			if err := os.Remove(dir); err != nil {
				logger.Warn("removing empty run directory failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			removed++
		}

		if removed > 0 {
			logger.Info("pruned empty run directories", zap.Int("removed", removed))
		}
		return nil
	}
}
