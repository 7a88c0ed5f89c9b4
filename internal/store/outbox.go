package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OutboxOp is the operation an outbox entry asks the mirror to perform.
type OutboxOp string

const (
	// OpUpsert mirrors the current local row to the remote store.
	OpUpsert OutboxOp = "upsert"
	// OpDelete removes the document from the remote store.
	OpDelete OutboxOp = "delete"
)

// OutboxEntry is one pending remote mirror operation. Entries survive
// restarts; the mirror worker drains them with exponential backoff.
type OutboxEntry struct {
	ID       int64
	Kind     Kind
	Op       OutboxOp
	LocalID  int64
	RemoteID string

	// Attempts counts failed mirror attempts so far.
	Attempts int
	// NextAttemptAt is when the entry becomes due again.
	NextAttemptAt time.Time
	// LastError is the most recent failure, surfaced in sync status output.
	LastError string

	CreatedAt time.Time
}

// EnqueueOutbox appends a pending mirror operation and returns its id.
// Due immediately.
func (db *DB) EnqueueOutbox(ctx context.Context, kind Kind, op OutboxOp, localID int64, remoteID string) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid kind %q", kind)
	}
	if op != OpUpsert && op != OpDelete {
		return 0, fmt.Errorf("invalid outbox op %q", op)
	}
	if op == OpDelete && remoteID == "" {
		return 0, fmt.Errorf("delete entries require a remote id")
	}

	now := time.Now()
	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO outbox (kind, op, local_id, remote_id, attempts, next_attempt_at, created_at)
	VALUES (?, ?, ?, ?, 0, ?, ?)`,
		string(kind), string(op), localID, strToNull(remoteID),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox entry id: %w", err)
	}
	return id, nil
}

// DueOutbox returns entries whose next attempt time has passed, oldest
// first, limited to limit entries (0 = no limit).
func (db *DB) DueOutbox(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error) {
	query := `
	SELECT id, kind, op, local_id, remote_id, attempts, next_attempt_at, last_error, created_at
	FROM outbox
	WHERE next_attempt_at <= ?
	ORDER BY id ASC`
	args := []interface{}{now.Format(time.RFC3339Nano)}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var kind, op, nextAt, createdAt string
		var remoteID, lastErr sql.NullString

		err := rows.Scan(&e.ID, &kind, &op, &e.LocalID, &remoteID, &e.Attempts, &nextAt, &lastErr, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}

		e.Kind = Kind(kind)
		e.Op = OutboxOp(op)
		e.RemoteID = nullToStr(remoteID)
		e.LastError = nullToStr(lastErr)
		e.NextAttemptAt = parseTime(nextAt)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox: %w", err)
	}
	return entries, nil
}

// OutboxCount returns the number of pending entries.
func (db *DB) OutboxCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return count, nil
}

// CompleteOutbox removes an entry after a successful mirror. Idempotent.
func (db *DB) CompleteOutbox(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to complete outbox entry %d: %w", id, err)
	}
	return nil
}

// FailOutbox records a failed mirror attempt: bumps the attempt count,
// stores the error, and pushes the next attempt out to nextAttempt.
func (db *DB) FailOutbox(ctx context.Context, id int64, attemptErr error, nextAttempt time.Time) error {
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	_, err := db.conn.ExecContext(ctx, `
	UPDATE outbox SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
	WHERE id = ?`,
		msg, nextAttempt.Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure for %d: %w", id, err)
	}
	return nil
}
