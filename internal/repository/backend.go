// Package repository defines the persistence interfaces used by the use case layer.
// Concrete adapters live under internal/infra/adapter/storage.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConditionUnsupported is returned by Put when a write condition is
// requested on a backend whose SupportsConditionalWrite reports false.
var ErrConditionUnsupported = errors.New("backend does not support conditional writes")

// MaxBlobValueBytes is the hard value-size ceiling of the blob store (25 MiB).
// Callers that can only reach the blob store must reject larger payloads
// before attempting the write.
const MaxBlobValueBytes = 25 << 20

// ConditionKind selects the precondition applied to a Put.
type ConditionKind int

const (
	// ConditionNone writes unconditionally.
	ConditionNone ConditionKind = iota
	// ConditionAbsent commits only if no value exists under the key.
	ConditionAbsent
	// ConditionTagMatch commits only if the stored version tag equals Tag.
	ConditionTagMatch
)

// PutOptions carries the optional TTL and write condition for a Put.
// A zero TTL means the value does not expire.
type PutOptions struct {
	TTL       time.Duration
	Condition ConditionKind
	Tag       string
}

// Backend is the uniform contract over the two storage kinds: a blob store
// (per-key TTL, cursor listing, no atomic preconditions, hard value-size
// ceiling) and an object store (version tags, conditional writes, no
// practical size ceiling).
//
// A missing key is a normal result (found=false, nil error), never an error.
// Infrastructure failures surface as *StorageError.
type Backend interface {
	// Get returns the stored value and, on backends that track one, the
	// opaque version tag of the current value.
	Get(ctx context.Context, key string) (value []byte, tag string, found bool, err error)

	// Put stores value under key. accepted=false means a requested
	// precondition did not hold; the store is unchanged in that case.
	Put(ctx context.Context, key string, value []byte, opts PutOptions) (accepted bool, err error)

	// Delete removes the key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// List returns keys under prefix one page at a time. An empty pageToken
	// starts the iteration; an empty next token ends it. Backends may return
	// duplicate keys across pages; callers must de-duplicate.
	List(ctx context.Context, prefix, pageToken string) (keys []string, next string, err error)

	// SupportsConditionalWrite reports whether ConditionAbsent and
	// ConditionTagMatch are honored atomically.
	SupportsConditionalWrite() bool
}

// StorageError wraps an infrastructure failure from a backend so callers can
// distinguish it from domain outcomes like not-found or rejected conditions.
type StorageError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

// Error returns a formatted error message for the storage error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with backend/operation/key context.
func NewStorageError(backend, op, key string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Key: key, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
