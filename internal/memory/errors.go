package memory

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an operation referenced an unknown atom id.
var ErrNotFound = errors.New("memory atom not found")

// ValidationError indicates an atom violates a structural invariant
// (confidence range, content length, unrecognized type or tier).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid atom: %s: %s", e.Field, e.Reason)
}

// StorageError indicates a persistence read or write failure. A malformed
// persisted record surfaces as a StorageError from the adapter's reporting
// path while the rest of the batch continues to load.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
