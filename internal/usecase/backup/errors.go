package backup

import "errors"

// Sentinel errors for backup use case operations.
var (
	// ErrBackupNotFound indicates the requested backup key holds no value,
	// either because it never existed or because its TTL expired.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrActiveHistoryEntry indicates an attempt to delete the history entry
	// whose version matches the current main document.
	ErrActiveHistoryEntry = errors.New("cannot delete the currently active history entry")
)
