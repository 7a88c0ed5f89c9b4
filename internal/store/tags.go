package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quillpad/quill/internal/model"
)

// CreateTag inserts a new tag and assigns its LocalID.
func (db *DB) CreateTag(ctx context.Context, t *model.Tag) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO tags (remote_id, name, color, creator_uid, created_at, updated_at, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strToNull(t.RemoteID),
		t.Name,
		strToNull(t.Color),
		t.CreatorUID,
		t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano),
		string(t.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read tag rowid: %w", err)
	}
	t.LocalID = id
	return nil
}

// ApplyRemoteTag applies an authoritative remote copy to the cache.
func (db *DB) ApplyRemoteTag(ctx context.Context, t *model.Tag) error {
	if t.RemoteID == "" {
		return fmt.Errorf("remote tag has no remote id")
	}
	t.SyncStatus = model.SyncStateSynced
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tag: %w", err)
	}

	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO tags (remote_id, name, color, creator_uid, created_at, updated_at, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(remote_id) DO UPDATE SET
		name = excluded.name,
		color = excluded.color,
		creator_uid = excluded.creator_uid,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status`,
		t.RemoteID,
		t.Name,
		strToNull(t.Color),
		t.CreatorUID,
		t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano),
		string(t.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote tag %s: %w", t.RemoteID, err)
	}
	return nil
}

// GetTag retrieves a tag by local id.
func (db *DB) GetTag(ctx context.Context, localID int64) (*model.Tag, error) {
	row := db.conn.QueryRowContext(ctx, tagSelect+` WHERE id = ?`, localID)
	t, err := scanTagRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %d: %w", localID, ErrNotFound)
	}
	return t, err
}

// ListTags retrieves tags, optionally scoped to a creator, ordered by name.
func (db *DB) ListTags(ctx context.Context, creatorUID string) ([]*model.Tag, error) {
	query := tagSelect
	var args []interface{}
	if creatorUID != "" {
		query += ` WHERE creator_uid = ?`
		args = append(args, creatorUID)
	}
	query += ` ORDER BY name ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		t, err := scanTagRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag row. Notes and events referencing the tag keep
// their dangling id; there is no cascade.
func (db *DB) DeleteTag(ctx context.Context, localID int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete tag %d: %w", localID, err)
	}
	return nil
}

// SetTagSync records the outcome of a mirror attempt.
func (db *DB) SetTagSync(ctx context.Context, localID int64, remoteID string, state model.SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE tags SET remote_id = COALESCE(?, remote_id), sync_status = ? WHERE id = ?`,
		strToNull(remoteID), string(state), localID)
	if err != nil {
		return fmt.Errorf("failed to set tag %d sync state: %w", localID, err)
	}
	return nil
}

const tagSelect = `
	SELECT id, remote_id, name, color, creator_uid, created_at, updated_at, sync_status
	FROM tags`

func scanTagRow(row rowScanner) (*model.Tag, error) {
	var t model.Tag
	var remoteID, color sql.NullString
	var createdAt, updatedAt, status string

	err := row.Scan(&t.LocalID, &remoteID, &t.Name, &color, &t.CreatorUID, &createdAt, &updatedAt, &status)
	if err != nil {
		return nil, err
	}

	t.RemoteID = nullToStr(remoteID)
	t.Color = nullToStr(color)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.SyncStatus = model.SyncState(status)
	return &t, nil
}
