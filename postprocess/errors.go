package postprocess

import "errors"

var (
	// ErrPersistence wraps every filesystem failure while saving a run.
	ErrPersistence = errors.New("postprocess: failed to persist run")

	// ErrInvalidPath is returned when a requested run file falls outside
	// the output root or does not look like a file this package writes.
	ErrInvalidPath = errors.New("postprocess: invalid run file path")
)
