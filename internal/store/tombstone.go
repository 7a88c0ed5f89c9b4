package store

import (
	"context"
	"fmt"
	"time"
)

// Kind names an entity table for tombstone and outbox bookkeeping.
type Kind string

const (
	KindNote   Kind = "note"
	KindEvent  Kind = "event"
	KindTag    Kind = "tag"
	KindFolder Kind = "folder"
)

// Valid reports whether k names a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNote, KindEvent, KindTag, KindFolder:
		return true
	}
	return false
}

// AddTombstone records that a record with the given remote id was deleted
// on this device. The tombstone suppresses the record during merges until
// the deletion has been propagated to the remote store.
func (db *DB) AddTombstone(ctx context.Context, kind Kind, remoteID string) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid kind %q", kind)
	}
	if remoteID == "" {
		return fmt.Errorf("remote id is required")
	}

	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO tombstones (remote_id, kind, deleted_at) VALUES (?, ?, ?)
	ON CONFLICT(remote_id, kind) DO NOTHING`,
		remoteID, string(kind), time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to add tombstone %s/%s: %w", kind, remoteID, err)
	}
	return nil
}

// RemoveTombstone clears a tombstone once the remote delete has landed.
// Idempotent.
func (db *DB) RemoveTombstone(ctx context.Context, kind Kind, remoteID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM tombstones WHERE remote_id = ? AND kind = ?`, remoteID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to remove tombstone %s/%s: %w", kind, remoteID, err)
	}
	return nil
}

// Tombstoned returns the set of remote ids tombstoned for the given kind.
// The result plugs directly into reconcile.MergeSuppressing.
func (db *DB) Tombstoned(ctx context.Context, kind Kind) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT remote_id FROM tombstones WHERE kind = ?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query tombstones: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tombstones: %w", err)
	}
	return ids, nil
}
