// Package store provides the embedded local cache backing quill.
//
// The cache is a SQLite database (via ncruces/go-sqlite3) opened in WAL
// mode so reads stay concurrent with writes. It holds every entity the
// app works with offline: notes, calendar events, tags, folders, plus two
// bookkeeping tables that make offline-first sync possible:
//
//   - tombstones: remote ids deleted on this device while offline, kept
//     until the deletion has been propagated so pulls don't resurrect them
//   - outbox: durable queue of pending remote mirror operations with
//     attempt counts and backoff times
//
// Records are keyed by an auto-increment local rowid; the remote document
// id lives in a nullable unique column and is filled in once the hosted
// store assigns one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with quill-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in WAL mode for concurrent reads. If it doesn't
// exist, it is created; call InitSchema before first use.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("~/.quill/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		owner_uid TEXT NOT NULL,
		owner_email TEXT,
		folder_id TEXT,
		tag_ids TEXT,  -- JSON array
		shares TEXT,   -- JSON array
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		edited_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		title TEXT NOT NULL,
		description TEXT,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		all_day INTEGER NOT NULL DEFAULT 0,
		owner_uid TEXT NOT NULL,
		owner_email TEXT,
		tag_ids TEXT,  -- JSON array
		shares TEXT,   -- JSON array
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		name TEXT NOT NULL,
		color TEXT,
		creator_uid TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id TEXT UNIQUE,
		name TEXT NOT NULL,
		color TEXT,
		owner_uid TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	-- Remote ids deleted locally, pending delete propagation.
	CREATE TABLE IF NOT EXISTS tombstones (
		remote_id TEXT NOT NULL,
		kind TEXT NOT NULL,  -- note, event, tag, folder
		deleted_at TEXT NOT NULL,
		PRIMARY KEY (remote_id, kind)
	);

	-- Durable queue of pending remote mirror operations.
	CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,      -- note, event, tag, folder
		op TEXT NOT NULL,        -- upsert, delete
		local_id INTEGER NOT NULL DEFAULT 0,
		remote_id TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TEXT NOT NULL,
		last_error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_uid);
	CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes(folder_id);
	CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);
	CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(sync_status);

	CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner_uid);
	CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
	CREATE INDEX IF NOT EXISTS idx_events_status ON events(sync_status);

	CREATE INDEX IF NOT EXISTS idx_tags_creator ON tags(creator_uid);
	CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner_uid);

	CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(next_attempt_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// SyncStateCounts tallies records of the given kind by sync status.
func (db *DB) SyncStateCounts(ctx context.Context, kind Kind) (map[string]int, error) {
	var table string
	switch kind {
	case KindNote:
		table = "notes"
	case KindEvent:
		table = "events"
	case KindTag:
		table = "tags"
	case KindFolder:
		table = "folders"
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT sync_status, COUNT(*) FROM %s GROUP BY sync_status", table))
	if err != nil {
		return nil, fmt.Errorf("failed to count %s by status: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// strToNull maps an empty string to SQL NULL. Used for remote_id so the
// UNIQUE constraint ignores not-yet-synced rows (SQLite allows repeated
// NULLs in a unique column).
func strToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToStr maps SQL NULL to the empty string.
func nullToStr(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// parseTime parses an RFC3339 timestamp, tolerating fractional seconds.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
