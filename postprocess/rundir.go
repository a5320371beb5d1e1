package postprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// RunDirLayout is the time layout of run directory names.
const RunDirLayout = "20060102_150405"

var runDirPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

// RunDirName formats now as a run directory name.
func RunDirName(now time.Time) string {
	return now.Format(RunDirLayout)
}

// RunDir creates root/YYYYMMDD_HHMMSS (and root itself) and returns its
// path. Two runs within the same second share a directory; files are then
// overwritten by the later run.
func RunDir(root string, now time.Time) (string, error) {
	dir := filepath.Join(root, RunDirName(now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create run directory %s: %v", ErrPersistence, dir, err)
	}
	return dir, nil
}

// IsRunDirName reports whether name looks like a run directory.
func IsRunDirName(name string) bool {
	return runDirPattern.MatchString(name)
}

// ListRunDirs returns the run directory names under root, newest first.
// A missing root yields an empty list.
func ListRunDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && IsRunDirName(e.Name()) {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs, nil
}

// ResolveRunFile maps a (run, file) pair from a download request to a path
// under root. It accepts only names this package writes, so the result can
// never escape root.
func ResolveRunFile(root, run, file string) (string, error) {
	if !IsRunDirName(run) {
		return "", fmt.Errorf("%w: run %q", ErrInvalidPath, run)
	}
	if file != MetadataFile {
		ext := filepath.Ext(file)
		stem := strings.TrimSuffix(file, ext)
		if (ext != ".png" && ext != ".jpg") || stem == "" || SanitizeBaseFilename(stem) != stem {
			return "", fmt.Errorf("%w: file %q", ErrInvalidPath, file)
		}
	}
	return filepath.Join(root, run, file), nil
}
