// Package store is the device's durable state: the offline write queue and
// the animal lookup cache, both in the agent's SQLite database. These two
// tables are the only persistent shared state on the device; the capture UI
// and the background reconciler interleave through the operations here and
// nothing else mutates them.
package store

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS queued_records (
	client_id   TEXT PRIMARY KEY,
	record_type TEXT NOT NULL,
	payload     TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	sync_status TEXT NOT NULL DEFAULT 'pending',
	fail_reason TEXT NOT NULL DEFAULT '',
	enqueued_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queued_records_status ON queued_records(sync_status, captured_at);

CREATE TABLE IF NOT EXISTS cached_animals (
	animal_id    TEXT PRIMARY KEY,
	tag_number   TEXT NOT NULL UNIQUE,
	barcode      TEXT NOT NULL DEFAULT '',
	snapshot     TEXT NOT NULL,
	refreshed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cached_animals_barcode ON cached_animals(barcode);
`

// Migrate creates the agent tables if they don't exist yet.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create agent tables: %w", err)
	}
	return nil
}
