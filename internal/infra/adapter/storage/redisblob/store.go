// Package redisblob implements the blob-store flavor of repository.Backend on
// Redis. It offers per-key TTL and cursor-based listing but no atomic write
// preconditions: SupportsConditionalWrite reports false and callers fall back
// to the weaker version-number guard documented on the record manager.
package redisblob

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"homeboard-sync/internal/repository"
)

const backendName = "redisblob"

// MaxValueBytes is the hard value-size ceiling of the blob store (25 MiB).
// Oversized payloads must be rejected before reaching this adapter; the
// check here is a backstop.
const MaxValueBytes = repository.MaxBlobValueBytes

// ErrValueTooLarge is returned when a value exceeds MaxValueBytes.
var ErrValueTooLarge = errors.New("value exceeds blob store size ceiling")

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 100

// Store is a repository.Backend backed by a redigo connection pool.
type Store struct {
	pool *redis.Pool
}

// New creates a Store on the given pool.
func New(pool *redis.Pool) *Store {
	return &Store{pool: pool}
}

// SupportsConditionalWrite reports false: Redis SET carries no version tag
// to condition on, so writes here are last-write-wins.
func (s *Store) SupportsConditionalWrite() bool { return false }

// Get returns the stored value. The version tag is always empty on this backend.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, "", false, repository.NewStorageError(backendName, "get", key, err)
	}
	defer func() { _ = conn.Close() }()

	value, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
	if err == redis.ErrNil {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, repository.NewStorageError(backendName, "get", key, err)
	}
	return value, "", true, nil
}

// Put stores value under key, with a PX expiry when a TTL is set.
// Any write condition is rejected with ErrConditionUnsupported.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts repository.PutOptions) (bool, error) {
	if opts.Condition != repository.ConditionNone {
		return false, repository.ErrConditionUnsupported
	}
	if len(value) > MaxValueBytes {
		return false, repository.NewStorageError(backendName, "put", key, ErrValueTooLarge)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, repository.NewStorageError(backendName, "put", key, err)
	}
	defer func() { _ = conn.Close() }()

	if opts.TTL > 0 {
		_, err = redis.DoContext(conn, ctx, "SET", key, value, "PX", opts.TTL.Milliseconds())
	} else {
		_, err = redis.DoContext(conn, ctx, "SET", key, value)
	}
	if err != nil {
		return false, repository.NewStorageError(backendName, "put", key, err)
	}
	return true, nil
}

// Delete removes the key. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return repository.NewStorageError(backendName, "delete", key, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := redis.DoContext(conn, ctx, "DEL", key); err != nil {
		return repository.NewStorageError(backendName, "delete", key, err)
	}
	return nil
}

// List pages keys under prefix using SCAN. The page token is the SCAN cursor.
// SCAN guarantees every key present for the whole iteration is returned at
// least once but may repeat keys; callers de-duplicate (see Backend contract).
func (s *Store) List(ctx context.Context, prefix, pageToken string) ([]string, string, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
	}
	defer func() { _ = conn.Close() }()

	cursor := pageToken
	if cursor == "" {
		cursor = "0"
	}

	reply, err := redis.Values(redis.DoContext(conn, ctx, "SCAN", cursor,
		"MATCH", matchPattern(prefix), "COUNT", scanCount))
	if err != nil {
		return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
	}

	var next string
	var keys []string
	if _, err := redis.Scan(reply, &next, &keys); err != nil {
		return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
	}
	if next == "0" {
		next = ""
	}
	return keys, next, nil
}

// matchPattern escapes glob metacharacters so the prefix matches literally.
func matchPattern(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+8)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '*', '?', '[', ']', '\\':
			escaped = append(escaped, '\\', prefix[i])
		default:
			escaped = append(escaped, prefix[i])
		}
	}
	return fmt.Sprintf("%s*", escaped)
}
