// Package memory provides an in-process repository.Backend used by tests and
// local development. It honors TTLs and can emulate either backend flavor via
// the Conditional toggle.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"homeboard-sync/internal/repository"
)

type record struct {
	value     []byte
	tag       string
	expiresAt time.Time // zero = no expiry
}

// Store is a thread-safe in-memory Backend.
type Store struct {
	mu          sync.Mutex
	data        map[string]record
	tagSeq      int
	pageSize    int
	Conditional bool // when true, SupportsConditionalWrite reports true

	// FailOps makes the named operations ("get", "put", "delete", "list")
	// return a StorageError, for exercising degraded paths in tests.
	FailOps map[string]bool

	now func() time.Time
}

// New creates an empty store emulating the object-store flavor.
func New() *Store {
	return &Store{
		data:        make(map[string]record),
		pageSize:    100,
		Conditional: true,
		now:         time.Now,
	}
}

// NewBlob creates an empty store emulating the blob-store flavor
// (no conditional writes).
func NewBlob() *Store {
	s := New()
	s.Conditional = false
	return s
}

// SetNow replaces the time source, letting tests expire keys deterministically.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

// SetPageSize overrides the List page size (tests use small pages to force
// multi-page iteration).
func (s *Store) SetPageSize(n int) { s.pageSize = n }

// SupportsConditionalWrite reports the configured flavor.
func (s *Store) SupportsConditionalWrite() bool { return s.Conditional }

func (s *Store) fail(op, key string) error {
	if s.FailOps[op] {
		return repository.NewStorageError("memory", op, key, context.DeadlineExceeded)
	}
	return nil
}

// Get returns the stored value and tag.
func (s *Store) Get(_ context.Context, key string) ([]byte, string, bool, error) {
	if err := s.fail("get", key); err != nil {
		return nil, "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(key)
	if !ok {
		return nil, "", false, nil
	}
	return append([]byte(nil), rec.value...), rec.tag, true, nil
}

// Put stores the value, honoring conditions when the store is conditional.
func (s *Store) Put(_ context.Context, key string, value []byte, opts repository.PutOptions) (bool, error) {
	if err := s.fail("put", key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Condition != repository.ConditionNone && !s.Conditional {
		return false, repository.ErrConditionUnsupported
	}

	cur, exists := s.live(key)
	switch opts.Condition {
	case repository.ConditionAbsent:
		if exists {
			return false, nil
		}
	case repository.ConditionTagMatch:
		if !exists || cur.tag != opts.Tag {
			return false, nil
		}
	}

	s.tagSeq++
	rec := record{
		value: append([]byte(nil), value...),
		tag:   "tag-" + strconv.Itoa(s.tagSeq),
	}
	if opts.TTL > 0 {
		rec.expiresAt = s.now().Add(opts.TTL)
	}
	s.data[key] = rec
	return true, nil
}

// Delete removes the key.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.fail("delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List pages matching keys in sorted order. The page token is the numeric
// offset into the sorted key set.
func (s *Store) List(_ context.Context, prefix, pageToken string) ([]string, string, error) {
	if err := s.fail("list", prefix); err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []string
	for k := range s.data {
		if _, ok := s.live(k); ok && strings.HasPrefix(k, prefix) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	offset := 0
	if pageToken != "" {
		offset, _ = strconv.Atoi(pageToken)
	}
	if offset >= len(all) {
		return nil, "", nil
	}
	end := offset + s.pageSize
	if end > len(all) {
		end = len(all)
	}
	page := append([]string(nil), all[offset:end]...)
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.data {
		if _, ok := s.live(k); ok {
			n++
		}
	}
	return n
}

// Has reports whether key is live.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok
}

// live returns the record if present and unexpired. Caller holds the lock.
func (s *Store) live(key string) (record, bool) {
	rec, ok := s.data[key]
	if !ok {
		return record{}, false
	}
	if !rec.expiresAt.IsZero() && !rec.expiresAt.After(s.now()) {
		return record{}, false
	}
	return rec, true
}
