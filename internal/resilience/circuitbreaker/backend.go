package circuitbreaker

import (
	"context"

	"github.com/sony/gobreaker"

	"homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/repository"
)

// BackendBreaker wraps a storage backend with circuit breaker protection.
// It prevents cascading failures when the underlying store becomes
// unavailable or slow. All calls flow through a single breaker so that a
// failing store stops receiving reads and writes alike.
type BackendBreaker struct {
	cb      *CircuitBreaker
	backend repository.Backend
}

var _ repository.Backend = (*BackendBreaker)(nil)

// getResult bundles the multi-value return of Backend.Get through the breaker.
type getResult struct {
	value []byte
	tag   string
	found bool
}

// listResult bundles the multi-value return of Backend.List through the breaker.
type listResult struct {
	keys      []string
	nextToken string
}

// WrapBackend wraps the given backend with the given circuit breaker configuration.
func WrapBackend(backend repository.Backend, cfg Config) *BackendBreaker {
	return &BackendBreaker{
		cb:      New(cfg),
		backend: backend,
	}
}

// Get fetches a key with circuit breaker protection.
// If the circuit is open, it returns ErrOpenState immediately without hitting the store.
func (bb *BackendBreaker) Get(ctx context.Context, key string) ([]byte, string, bool, error) {
	result, err := bb.cb.Execute(func() (interface{}, error) {
		value, tag, found, err := bb.backend.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: value, tag: tag, found: found}, nil
	})
	if err != nil {
		metrics.RecordStorageError(bb.cb.Name(), "get")
		return nil, "", false, err
	}

	res := result.(getResult)
	return res.value, res.tag, res.found, nil
}

// Put stores a key with circuit breaker protection.
func (bb *BackendBreaker) Put(ctx context.Context, key string, value []byte, opts repository.PutOptions) (bool, error) {
	result, err := bb.cb.Execute(func() (interface{}, error) {
		accepted, err := bb.backend.Put(ctx, key, value, opts)
		if err != nil {
			return nil, err
		}
		return accepted, nil
	})
	if err != nil {
		metrics.RecordStorageError(bb.cb.Name(), "put")
		return false, err
	}

	return result.(bool), nil
}

// Delete removes a key with circuit breaker protection.
func (bb *BackendBreaker) Delete(ctx context.Context, key string) error {
	_, err := bb.cb.Execute(func() (interface{}, error) {
		return nil, bb.backend.Delete(ctx, key)
	})
	if err != nil {
		metrics.RecordStorageError(bb.cb.Name(), "delete")
	}
	return err
}

// List pages through keys with circuit breaker protection.
func (bb *BackendBreaker) List(ctx context.Context, prefix, pageToken string) ([]string, string, error) {
	result, err := bb.cb.Execute(func() (interface{}, error) {
		keys, next, err := bb.backend.List(ctx, prefix, pageToken)
		if err != nil {
			return nil, err
		}
		return listResult{keys: keys, nextToken: next}, nil
	})
	if err != nil {
		metrics.RecordStorageError(bb.cb.Name(), "list")
		return nil, "", err
	}

	res := result.(listResult)
	return res.keys, res.nextToken, nil
}

// SupportsConditionalWrite reports the underlying backend's capability.
// It never touches the breaker because the answer is static.
func (bb *BackendBreaker) SupportsConditionalWrite() bool {
	return bb.backend.SupportsConditionalWrite()
}

// State returns the current state of the circuit breaker.
func (bb *BackendBreaker) State() gobreaker.State {
	return bb.cb.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (bb *BackendBreaker) IsOpen() bool {
	return bb.cb.IsOpen()
}
