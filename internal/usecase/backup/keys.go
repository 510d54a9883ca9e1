// Package backup provides the backup and history manager: snapshot creation,
// the ring-bounded history log with its self-healing index, restore with
// rollback points, and backup deletion policy.
package backup

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeboard-sync/internal/domain/entity"
)

// Persisted key namespaces. The index key shares the history prefix, so
// timestamp parsing doubles as the filter that keeps it out of listings.
const (
	SnapshotPrefix = "sync:backup:"
	HistoryPrefix  = "sync:history:"
	IndexKey       = "sync:history:index"
)

// SnapshotKey builds a manual-snapshot key from its creation time.
func SnapshotKey(t time.Time) string {
	return SnapshotPrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

// HistoryKey builds a history-entry key. The random suffix keeps keys unique
// even when two entries land on the same millisecond.
func HistoryKey(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return HistoryPrefix + strconv.FormatInt(t.UnixMilli(), 10) + "-" + suffix
}

// keyTimestamp extracts the millisecond timestamp a backup key was derived
// from. ok=false for foreign keys under the same prefix (notably the index
// key), which listings must skip.
func keyTimestamp(key string) (int64, bool) {
	var rest string
	switch {
	case strings.HasPrefix(key, HistoryPrefix):
		rest = strings.TrimPrefix(key, HistoryPrefix)
	case strings.HasPrefix(key, SnapshotPrefix):
		rest = strings.TrimPrefix(key, SnapshotPrefix)
	default:
		return 0, false
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || ts <= 0 {
		return 0, false
	}
	return ts, true
}

// isHistoryKey reports whether key is a real history entry (not the index).
func isHistoryKey(key string) bool {
	if !strings.HasPrefix(key, HistoryPrefix) || key == IndexKey {
		return false
	}
	_, ok := keyTimestamp(key)
	return ok
}

// ValidateBackupKey rejects keys outside the known backup namespaces before
// any backend access, so arbitrary keys can never be fetched or deleted
// through the backup API.
func ValidateBackupKey(key string) error {
	if key == "" {
		return &entity.ValidationError{Field: "key", Message: "backup key is required"}
	}
	if key == IndexKey {
		return &entity.ValidationError{Field: "key", Message: "invalid backup key"}
	}
	if _, ok := keyTimestamp(key); !ok {
		return &entity.ValidationError{Field: "key", Message: "invalid backup key"}
	}
	return nil
}
