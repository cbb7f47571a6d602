package cdmkn

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by errors caused by bad caller input: malformed
// paths, paths outside any registered repository, unknown versions.
// These are reported and never retried.
var ErrInvalidInput = errors.New("invalid input")

// invalidInputf returns an error wrapping ErrInvalidInput.
func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IOError is a transient read or stat failure on a single file. The watcher
// skips the file for the current pass and does not escalate.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("reading %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// StorageError is a transaction or connection failure in the change log.
// It is fatal to the watcher: continuing would let the in-memory baselines
// drift away from the persisted history.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError unless it already is one.
func NewStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// CorruptHistoryError reports a stored change whose elements cannot be
// decoded. It concerns that single record only.
type CorruptHistoryError struct {
	ChangeID int64
	Err      error
}

func (e *CorruptHistoryError) Error() string {
	return fmt.Sprintf("change %d is corrupt: %v", e.ChangeID, e.Err)
}
func (e *CorruptHistoryError) Unwrap() error { return e.Err }
