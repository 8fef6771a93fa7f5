package types

import (
	"errors"
	"fmt"
)

// Store lifecycle errors. These are fatal to the session: no operation can
// proceed and nothing retries automatically.
var (
	ErrStoreUnavailable = errors.New("note store is unavailable")
	ErrStoreDetached    = fmt.Errorf("%w: store is detached", ErrStoreUnavailable)
)

// Operation errors. These are recoverable; other records stay valid.
var (
	ErrNotFound      = errors.New("note not found")
	ErrQuotaExceeded = errors.New("media quota exceeded")
	ErrInvalidKind   = errors.New("invalid note kind")
	ErrInvalidID     = errors.New("invalid note ID")
	ErrIDInUse       = errors.New("note ID is held by another kind")
	ErrInvalidRecord = errors.New("invalid note record")
	ErrEmptyMedia    = errors.New("media payload is empty")
)

// OpError records a failed store operation on a single record or blob.
type OpError struct {
	Op   string // get, put, delete, getBySite, getAll, getBlob, putBlob, deleteBlob
	Kind Kind   // empty for blob operations
	ID   string // empty for collection operations
	Err  error
}

func (e *OpError) Error() string {
	target := e.ID
	if e.Kind != "" {
		if target == "" {
			target = string(e.Kind)
		} else {
			target = string(e.Kind) + "/" + e.ID
		}
	}
	if target == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + target + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a per-operation failure the caller
// may retry. Store-unavailable errors are never recoverable.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return false
	}
	var opErr *OpError
	return errors.As(err, &opErr)
}

// Unavailable wraps the cause of a failed store open.
func Unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)
}
