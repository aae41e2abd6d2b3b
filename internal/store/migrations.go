package store

import (
	"github.com/pkg/errors"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "atoms: tiered memory atoms",
		SQL: `
CREATE TABLE atoms (
    id                TEXT PRIMARY KEY,
    type              TEXT NOT NULL CHECK (type IN ('identity', 'value', 'thinking', 'preference', 'communication')),
    content           TEXT NOT NULL,
    confidence        REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
    tier              TEXT NOT NULL CHECK (tier IN ('short_term', 'working', 'long_term')),

    -- Lifecycle bookkeeping
    created_at        INTEGER NOT NULL,
    last_triggered_at INTEGER NOT NULL,
    decayed_at        INTEGER,
    trigger_count     INTEGER NOT NULL DEFAULT 0,

    -- Provenance
    source_session    TEXT,
    related_principle TEXT,
    tags              TEXT
);

CREATE INDEX idx_atoms_tier       ON atoms(tier);
CREATE INDEX idx_atoms_type       ON atoms(type);
CREATE INDEX idx_atoms_confidence ON atoms(confidence DESC);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return errors.Wrap(err, "create schema_versions")
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return errors.Wrapf(err, "check migration %d", m.Version)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin migration %d", m.Version)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "migration %d (%s)", m.Version, m.Description)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record migration %d", m.Version)
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %d", m.Version)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
