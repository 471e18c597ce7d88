package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// migration is one versioned schema step. The checksum of the applied SQL is
// recorded so a changed historical migration is detected instead of silently
// diverging.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_resources",
		SQL: `
			CREATE TABLE resources (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				capacity   INTEGER NOT NULL CHECK (capacity > 0),
				attributes TEXT NOT NULL DEFAULT '[]',
				building   TEXT NOT NULL DEFAULT '',
				floor      INTEGER NOT NULL DEFAULT 0,
				retired    INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_bookings",
		SQL: `
			CREATE TABLE bookings (
				id           TEXT PRIMARY KEY,
				resource_id  TEXT NOT NULL REFERENCES resources(id),
				owner_id     TEXT NOT NULL,
				start_at     TEXT NOT NULL,
				end_at       TEXT NOT NULL,
				party_size   INTEGER NOT NULL CHECK (party_size > 0),
				purpose      TEXT NOT NULL DEFAULT '',
				series_id    TEXT,
				version      INTEGER NOT NULL DEFAULT 1,
				cancelled_at TEXT,
				created_at   TEXT NOT NULL,
				updated_at   TEXT NOT NULL,
				CHECK (start_at < end_at)
			);
			CREATE INDEX idx_bookings_resource_start ON bookings(resource_id, start_at);
			CREATE INDEX idx_bookings_owner ON bookings(owner_id);
			CREATE INDEX idx_bookings_series ON bookings(series_id) WHERE series_id IS NOT NULL;
		`,
	},
	{
		Version: 3,
		Name:    "create_accounts",
		SQL: `
			CREATE TABLE accounts (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
				display_name  TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				is_admin      INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			);
		`,
	},
}

// Migrate applies all pending migrations in version order. It is safe to run
// at every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := cp.checkApplied(ctx, m)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("sqlite: apply migration %d (%s): %w", m.Version, m.Name, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
				m.Version, m.Name, checksum(m.SQL),
			); err != nil {
				return fmt.Errorf("sqlite: record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// checkApplied reports whether the migration already ran, failing when the
// recorded checksum no longer matches the embedded SQL.
func (cp *ConnectionPool) checkApplied(ctx context.Context, m migration) (bool, error) {
	var recorded string
	err := cp.db.QueryRowContext(ctx,
		"SELECT checksum FROM schema_migrations WHERE version = ?", m.Version,
	).Scan(&recorded)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: read schema_migrations: %w", err)
	}
	if recorded != checksum(m.SQL) {
		return false, fmt.Errorf("sqlite: migration %d (%s) changed after being applied", m.Version, m.Name)
	}
	return true, nil
}

func checksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
