package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are epoch seconds throughout so both dialects share the same
// queries. Booleans are BOOLEAN (TINYINT(1) on MySQL, INTEGER on SQLite).

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		floor_id            VARCHAR(64) NOT NULL,
		seat_id             VARCHAR(64) NOT NULL,
		has_power           BOOLEAN     NOT NULL DEFAULT FALSE,
		is_empty            BOOLEAN     NOT NULL DEFAULT TRUE,
		is_reported         BOOLEAN     NOT NULL DEFAULT FALSE,
		is_malicious        BOOLEAN     NOT NULL DEFAULT FALSE,
		is_system_reported  BOOLEAN     NOT NULL DEFAULT FALSE,
		lock_until_ts       BIGINT      NOT NULL DEFAULT 0,
		last_update_ts      BIGINT      NOT NULL DEFAULT 0,
		last_state_is_empty BOOLEAN     NOT NULL DEFAULT TRUE,
		daily_empty_seconds BIGINT      NOT NULL DEFAULT 0,
		total_empty_seconds BIGINT      NOT NULL DEFAULT 0,
		change_count        BIGINT      NOT NULL DEFAULT 0,
		occupancy_start_ts  BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (floor_id, seat_id),
		KEY idx_seats_malicious (is_malicious)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64)  NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'student',
		created_at    BIGINT       NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS rollover_state (
		name    VARCHAR(32) NOT NULL PRIMARY KEY,
		last_ts BIGINT      NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		floor_id            VARCHAR(64) NOT NULL,
		seat_id             VARCHAR(64) NOT NULL,
		has_power           BOOLEAN     NOT NULL DEFAULT FALSE,
		is_empty            BOOLEAN     NOT NULL DEFAULT TRUE,
		is_reported         BOOLEAN     NOT NULL DEFAULT FALSE,
		is_malicious        BOOLEAN     NOT NULL DEFAULT FALSE,
		is_system_reported  BOOLEAN     NOT NULL DEFAULT FALSE,
		lock_until_ts       BIGINT      NOT NULL DEFAULT 0,
		last_update_ts      BIGINT      NOT NULL DEFAULT 0,
		last_state_is_empty BOOLEAN     NOT NULL DEFAULT TRUE,
		daily_empty_seconds BIGINT      NOT NULL DEFAULT 0,
		total_empty_seconds BIGINT      NOT NULL DEFAULT 0,
		change_count        BIGINT      NOT NULL DEFAULT 0,
		occupancy_start_ts  BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (floor_id, seat_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seats_malicious ON seats (is_malicious)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      VARCHAR(64)  NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'student',
		created_at    BIGINT       NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS rollover_state (
		name    VARCHAR(32) NOT NULL PRIMARY KEY,
		last_ts BIGINT      NOT NULL DEFAULT 0
	)`,
}

// EnsureSchema creates the tables the server needs if they are missing.
// It never alters existing tables.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverMySQL:
		stmts = mysqlSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("schema: unsupported driver %q", driver)
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema: statement %d: %w", i+1, err)
		}
	}
	return nil
}
