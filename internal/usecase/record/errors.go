// Package record provides the versioned record manager: optimistic-concurrency
// read and write of the main sync document over either storage backend.
package record

import (
	"errors"

	"homeboard-sync/internal/domain/entity"
)

// Sentinel errors for record use case operations.
var (
	// ErrPayloadTooLarge indicates the serialized document exceeds the
	// blob store's value-size ceiling. Only raised on the blob-only path;
	// the object store has no practical ceiling.
	ErrPayloadTooLarge = errors.New("payload exceeds blob store size ceiling")
)

// ConflictError is returned when an optimistic write loses: either the caller
// supplied a stale expected version, or a concurrent writer won the
// conditional-write race. Latest carries the admin-sanitized current document
// so the caller can re-merge client-side.
type ConflictError struct {
	Latest *entity.SyncDocument
}

// Error returns the error message.
func (e *ConflictError) Error() string { return "version conflict" }

// AsConflict extracts a ConflictError from err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
