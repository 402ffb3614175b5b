package types

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateCode   = errors.New("code already registered")
	ErrNotFound        = errors.New("identity not found")
	ErrInvalidIdentity = errors.New("name, category and code are required")
	ErrSourceClosed    = errors.New("capture source closed")
)

// StorageError reports a failure of the persistence layer.  Callers on the
// detection path log it and keep going; the dedup cool-down is not started.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
