package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quillpad/quill/internal/model"
)

// CreateFolder inserts a new folder and assigns its LocalID.
func (db *DB) CreateFolder(ctx context.Context, f *model.Folder) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO folders (remote_id, name, color, owner_uid, created_at, updated_at, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strToNull(f.RemoteID),
		f.Name,
		strToNull(f.Color),
		f.OwnerUID,
		f.CreatedAt.Format(time.RFC3339Nano),
		f.UpdatedAt.Format(time.RFC3339Nano),
		string(f.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read folder rowid: %w", err)
	}
	f.LocalID = id
	return nil
}

// ApplyRemoteFolder applies an authoritative remote copy to the cache.
func (db *DB) ApplyRemoteFolder(ctx context.Context, f *model.Folder) error {
	if f.RemoteID == "" {
		return fmt.Errorf("remote folder has no remote id")
	}
	f.SyncStatus = model.SyncStateSynced
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO folders (remote_id, name, color, owner_uid, created_at, updated_at, sync_status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(remote_id) DO UPDATE SET
		name = excluded.name,
		color = excluded.color,
		owner_uid = excluded.owner_uid,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status`,
		f.RemoteID,
		f.Name,
		strToNull(f.Color),
		f.OwnerUID,
		f.CreatedAt.Format(time.RFC3339Nano),
		f.UpdatedAt.Format(time.RFC3339Nano),
		string(f.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote folder %s: %w", f.RemoteID, err)
	}
	return nil
}

// GetFolder retrieves a folder by local id.
func (db *DB) GetFolder(ctx context.Context, localID int64) (*model.Folder, error) {
	row := db.conn.QueryRowContext(ctx, folderSelect+` WHERE id = ?`, localID)
	f, err := scanFolderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %d: %w", localID, ErrNotFound)
	}
	return f, err
}

// ListFolders retrieves folders, optionally scoped to an owner, ordered by name.
func (db *DB) ListFolders(ctx context.Context, ownerUID string) ([]*model.Folder, error) {
	query := folderSelect
	var args []interface{}
	if ownerUID != "" {
		query += ` WHERE owner_uid = ?`
		args = append(args, ownerUID)
	}
	query += ` ORDER BY name ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		f, err := scanFolderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}
	return folders, nil
}

// DeleteFolder removes a folder row and unfiles any notes that pointed at it.
func (db *DB) DeleteFolder(ctx context.Context, localID int64) error {
	f, err := db.GetFolder(ctx, localID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if f.RemoteID != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, f.RemoteID); err != nil {
			return fmt.Errorf("failed to unfile notes: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete folder %d: %w", localID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetFolderSync records the outcome of a mirror attempt.
func (db *DB) SetFolderSync(ctx context.Context, localID int64, remoteID string, state model.SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE folders SET remote_id = COALESCE(?, remote_id), sync_status = ? WHERE id = ?`,
		strToNull(remoteID), string(state), localID)
	if err != nil {
		return fmt.Errorf("failed to set folder %d sync state: %w", localID, err)
	}
	return nil
}

const folderSelect = `
	SELECT id, remote_id, name, color, owner_uid, created_at, updated_at, sync_status
	FROM folders`

func scanFolderRow(row rowScanner) (*model.Folder, error) {
	var f model.Folder
	var remoteID, color sql.NullString
	var createdAt, updatedAt, status string

	err := row.Scan(&f.LocalID, &remoteID, &f.Name, &color, &f.OwnerUID, &createdAt, &updatedAt, &status)
	if err != nil {
		return nil, err
	}

	f.RemoteID = nullToStr(remoteID)
	f.Color = nullToStr(color)
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	f.SyncStatus = model.SyncState(status)
	return &f, nil
}
