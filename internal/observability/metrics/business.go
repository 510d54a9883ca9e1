package metrics

// RecordSyncWrite records the outcome of a document write.
// Outcome should be "accepted", "conflict", or "rejected".
func RecordSyncWrite(outcome string) {
	SyncWritesTotal.WithLabelValues(outcome).Inc()
}

// SetDocumentVersion updates the gauge tracking the current document version.
func SetDocumentVersion(version int) {
	SyncDocumentVersion.Set(float64(version))
}

// RecordBackupOperation records a backup lifecycle operation.
// Kind is "snapshot", "history", "restore", or "delete";
// outcome is "success" or "failure".
func RecordBackupOperation(kind string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	BackupOperationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordHistoryIndexRebuild records one full rebuild of the history index.
func RecordHistoryIndexRebuild() {
	HistoryIndexRebuildsTotal.Inc()
}

// RecordAuthAttempt records a credential check by identity tier.
// Outcome should be "allowed", "wrong_password", or "locked".
func RecordAuthAttempt(tier, outcome string) {
	AuthAttemptsTotal.WithLabelValues(tier, outcome).Inc()
}

// RecordLockout records an identity transitioning into the locked state.
func RecordLockout(tier string) {
	LockoutsTotal.WithLabelValues(tier).Inc()
}

// RecordStorageError records a failed backend operation.
func RecordStorageError(backend, operation string) {
	StorageErrorsTotal.WithLabelValues(backend, operation).Inc()
}

// RecordSweepDeleted records keys reclaimed by a retention sweep.
// Sweep names the job, e.g. "expired_objects" or "stale_attempts".
func RecordSweepDeleted(sweep string, count int) {
	if count <= 0 {
		return
	}
	SweepDeletedTotal.WithLabelValues(sweep).Add(float64(count))
}
