// Package pgobject implements the object-store flavor of repository.Backend
// on Postgres. Every write installs a fresh version tag; conditional writes
// (absent-only, tag-match) commit atomically in a single statement, which is
// what lets the record manager detect concurrent writers reliably.
package pgobject

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeboard-sync/internal/repository"
)

const backendName = "pgobject"

// defaultPageSize bounds one List page.
const defaultPageSize = 100

// Store is a repository.Backend backed by a single Postgres relation.
type Store struct {
	db       *sql.DB
	pageSize int
}

// New creates a Store on the given connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, pageSize: defaultPageSize}
}

// SupportsConditionalWrite reports true: single-statement preconditions are atomic here.
func (s *Store) SupportsConditionalWrite() bool { return true }

// Get returns the current value and its version tag. Rows past their
// expiry are treated as absent even before the sweeper removes them.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, bool, error) {
	const query = `
SELECT value, version_tag
FROM objects
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
LIMIT 1`
	var value []byte
	var tag string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &tag)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, repository.NewStorageError(backendName, "get", key, err)
	}
	return value, tag, true, nil
}

// Put stores value under key, minting a new version tag. The condition is
// evaluated inside the statement so the check and the write are one atomic step.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts repository.PutOptions) (bool, error) {
	newTag := uuid.NewString()
	expiresAt := expiry(opts.TTL)

	switch opts.Condition {
	case repository.ConditionNone:
		const query = `
INSERT INTO objects (key, value, version_tag, expires_at, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, version_tag = EXCLUDED.version_tag,
    expires_at = EXCLUDED.expires_at, updated_at = now()`
		if _, err := s.db.ExecContext(ctx, query, key, value, newTag, expiresAt); err != nil {
			return false, repository.NewStorageError(backendName, "put", key, err)
		}
		return true, nil

	case repository.ConditionAbsent:
		// An expired row still occupies the key; absent-only may replace it.
		const query = `
INSERT INTO objects (key, value, version_tag, expires_at, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, version_tag = EXCLUDED.version_tag,
    expires_at = EXCLUDED.expires_at, updated_at = now()
WHERE objects.expires_at IS NOT NULL AND objects.expires_at <= now()`
		res, err := s.db.ExecContext(ctx, query, key, value, newTag, expiresAt)
		if err != nil {
			return false, repository.NewStorageError(backendName, "put", key, err)
		}
		return affected(res), nil

	case repository.ConditionTagMatch:
		const query = `
UPDATE objects
SET value = $2, version_tag = $3, expires_at = $4, updated_at = now()
WHERE key = $1 AND version_tag = $5
  AND (expires_at IS NULL OR expires_at > now())`
		res, err := s.db.ExecContext(ctx, query, key, value, newTag, expiresAt, opts.Tag)
		if err != nil {
			return false, repository.NewStorageError(backendName, "put", key, err)
		}
		return affected(res), nil

	default:
		return false, repository.NewStorageError(backendName, "put", key,
			fmt.Errorf("unknown condition kind %d", opts.Condition))
	}
}

// Delete removes the key. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = $1`, key); err != nil {
		return repository.NewStorageError(backendName, "delete", key, err)
	}
	return nil
}

// List pages keys under prefix in ascending key order. The page token is the
// last key of the previous page (keyset pagination), opaque to callers.
func (s *Store) List(ctx context.Context, prefix, pageToken string) ([]string, string, error) {
	const query = `
SELECT key FROM objects
WHERE key LIKE $1 AND key > $2
  AND (expires_at IS NULL OR expires_at > now())
ORDER BY key ASC
LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, likePrefix(prefix), pageToken, s.pageSize)
	if err != nil {
		return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0, s.pageSize)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, "", repository.NewStorageError(backendName, "list", prefix, err)
	}

	next := ""
	if len(keys) == s.pageSize {
		next = keys[len(keys)-1]
	}
	return keys, next, nil
}

// PurgeExpired deletes rows whose expiry has passed. Called by the worker
// sweeper; reads already treat such rows as absent.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, repository.NewStorageError(backendName, "purge", "", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// likePrefix escapes LIKE metacharacters so the prefix matches literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
