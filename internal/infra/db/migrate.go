package db

import "database/sql"

// MigrateUp installs the object-store schema. Safe to run on every startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS objects (
    key         TEXT PRIMARY KEY,
    value       BYTEA NOT NULL,
    version_tag UUID NOT NULL,
    expires_at  TIMESTAMPTZ,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Expired-row purge in the worker sweeper
		`CREATE INDEX IF NOT EXISTS idx_objects_expires_at ON objects(expires_at) WHERE expires_at IS NOT NULL`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
