package config

import "time"

// Engine holds the sync engine's retention and lockout tunables.
// Defaults follow the production values; every field can be overridden
// through environment variables for testing and staging.
type Engine struct {
	// HistoryRingSize is the maximum number of retained history entries.
	HistoryRingSize int

	// BackupTTL bounds snapshot, history and rollback retention.
	BackupTTL time.Duration

	// LockoutTTL is both the lockout window and the attempt-record TTL.
	LockoutTTL time.Duration

	// MaxListIterations caps backend pagination during index rebuild.
	MaxListIterations int

	// SessionTokenTTL bounds JWT session tokens issued on login.
	SessionTokenTTL time.Duration
}

// LoadEngine reads the engine configuration from the environment.
func LoadEngine() Engine {
	return Engine{
		HistoryRingSize:   GetEnvInt("HISTORY_RING_SIZE", 20),
		BackupTTL:         GetEnvDuration("BACKUP_TTL", 30*24*time.Hour),
		LockoutTTL:        GetEnvDuration("LOCKOUT_TTL", time.Hour),
		MaxListIterations: GetEnvInt("HISTORY_LIST_MAX_PAGES", 50),
		SessionTokenTTL:   GetEnvDuration("SESSION_TOKEN_TTL", 24*time.Hour),
	}
}
