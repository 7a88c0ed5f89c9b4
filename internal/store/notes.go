package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillpad/quill/internal/model"
)

// ErrNotFound is returned when a requested record does not exist locally.
var ErrNotFound = errors.New("record not found")

// CreateNote inserts a new note and assigns its LocalID.
// The note is validated first; defaults should already be applied.
func (db *DB) CreateNote(ctx context.Context, n *model.Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalNoteBlobs(n)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO notes (
		remote_id, title, content, owner_uid, owner_email, folder_id,
		tag_ids, shares, created_at, updated_at, edited_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		strToNull(n.RemoteID),
		n.Title,
		n.Content,
		n.OwnerUID,
		strToNull(n.OwnerEmail),
		strToNull(n.FolderID),
		tagsJSON,
		sharesJSON,
		n.CreatedAt.Format(time.RFC3339Nano),
		n.UpdatedAt.Format(time.RFC3339Nano),
		timeToNullString(n.EditedAt),
		string(n.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read note rowid: %w", err)
	}
	n.LocalID = id
	return nil
}

// UpdateNote rewrites an existing note by LocalID.
func (db *DB) UpdateNote(ctx context.Context, n *model.Note) error {
	if n.LocalID == 0 {
		return fmt.Errorf("note has no local id")
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalNoteBlobs(n)
	if err != nil {
		return err
	}

	query := `
	UPDATE notes SET
		remote_id = ?, title = ?, content = ?, owner_uid = ?, owner_email = ?,
		folder_id = ?, tag_ids = ?, shares = ?, created_at = ?, updated_at = ?,
		edited_at = ?, sync_status = ?
	WHERE id = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		strToNull(n.RemoteID),
		n.Title,
		n.Content,
		n.OwnerUID,
		strToNull(n.OwnerEmail),
		strToNull(n.FolderID),
		tagsJSON,
		sharesJSON,
		n.CreatedAt.Format(time.RFC3339Nano),
		n.UpdatedAt.Format(time.RFC3339Nano),
		timeToNullString(n.EditedAt),
		string(n.SyncStatus),
		n.LocalID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", n.LocalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("note %d: %w", n.LocalID, ErrNotFound)
	}
	return nil
}

// ApplyRemoteNote applies an authoritative remote copy to the cache.
//
// If a row with the same remote id exists it is replaced wholesale (no
// field-level merge) and marked synced; otherwise a new row is inserted.
// This is the pull-side entry point used by full sync and by real-time
// snapshot notifications.
func (db *DB) ApplyRemoteNote(ctx context.Context, n *model.Note) error {
	if n.RemoteID == "" {
		return fmt.Errorf("remote note has no remote id")
	}
	n.SyncStatus = model.SyncStateSynced
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalNoteBlobs(n)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO notes (
		remote_id, title, content, owner_uid, owner_email, folder_id,
		tag_ids, shares, created_at, updated_at, edited_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(remote_id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		owner_uid = excluded.owner_uid,
		owner_email = excluded.owner_email,
		folder_id = excluded.folder_id,
		tag_ids = excluded.tag_ids,
		shares = excluded.shares,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		edited_at = excluded.edited_at,
		sync_status = excluded.sync_status
	`

	_, err = db.conn.ExecContext(ctx, query,
		n.RemoteID,
		n.Title,
		n.Content,
		n.OwnerUID,
		strToNull(n.OwnerEmail),
		strToNull(n.FolderID),
		tagsJSON,
		sharesJSON,
		n.CreatedAt.Format(time.RFC3339Nano),
		n.UpdatedAt.Format(time.RFC3339Nano),
		timeToNullString(n.EditedAt),
		string(n.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote note %s: %w", n.RemoteID, err)
	}
	return nil
}

// GetNote retrieves a note by local id.
// Returns ErrNotFound if it doesn't exist.
func (db *DB) GetNote(ctx context.Context, localID int64) (*model.Note, error) {
	row := db.conn.QueryRowContext(ctx, noteSelect+` WHERE id = ?`, localID)
	n, err := scanNoteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %d: %w", localID, ErrNotFound)
	}
	return n, err
}

// GetNoteByRemoteID retrieves a note by its hosted-store document id.
// Returns ErrNotFound if no row carries that id.
func (db *DB) GetNoteByRemoteID(ctx context.Context, remoteID string) (*model.Note, error) {
	row := db.conn.QueryRowContext(ctx, noteSelect+` WHERE remote_id = ?`, remoteID)
	n, err := scanNoteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", remoteID, ErrNotFound)
	}
	return n, err
}

// NoteFilter configures the ListNotes query.
type NoteFilter struct {
	// OwnerUID filters by owner (empty = all).
	OwnerUID string
	// FolderID filters by folder (empty = all).
	FolderID string
	// SyncStatus filters by sync state (empty = all).
	SyncStatus model.SyncState
	// Limit restricts the number of results (0 = no limit).
	Limit int
	// Offset skips the first N results.
	Offset int
}

// ListNotes retrieves notes matching the filter, newest first.
func (db *DB) ListNotes(ctx context.Context, filter NoteFilter) ([]*model.Note, error) {
	var conditions []string
	var args []interface{}

	if filter.OwnerUID != "" {
		conditions = append(conditions, "owner_uid = ?")
		args = append(args, filter.OwnerUID)
	}
	if filter.FolderID != "" {
		conditions = append(conditions, "folder_id = ?")
		args = append(args, filter.FolderID)
	}
	if filter.SyncStatus != "" {
		conditions = append(conditions, "sync_status = ?")
		args = append(args, string(filter.SyncStatus))
	}

	query := noteSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// DeleteNote removes a note row. If the note had a remote id, the caller
// is responsible for recording a tombstone and enqueueing the remote
// delete; see mirror.Writer.DeleteNote for the composed operation.
// Idempotent: deleting a missing row is not an error.
func (db *DB) DeleteNote(ctx context.Context, localID int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete note %d: %w", localID, err)
	}
	return nil
}

// SetNoteSync records the outcome of a mirror attempt: the remote id
// assigned by the hosted store (if new) and the resulting sync state.
func (db *DB) SetNoteSync(ctx context.Context, localID int64, remoteID string, state model.SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET remote_id = COALESCE(?, remote_id), sync_status = ? WHERE id = ?`,
		strToNull(remoteID), string(state), localID)
	if err != nil {
		return fmt.Errorf("failed to set note %d sync state: %w", localID, err)
	}
	return nil
}

const noteSelect = `
	SELECT id, remote_id, title, content, owner_uid, owner_email, folder_id,
	       tag_ids, shares, created_at, updated_at, edited_at, sync_status
	FROM notes`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNoteRow(row rowScanner) (*model.Note, error) {
	var n model.Note
	var remoteID, ownerEmail, folderID, tagsJSON, sharesJSON, editedAt sql.NullString
	var createdAt, updatedAt, status string

	err := row.Scan(
		&n.LocalID,
		&remoteID,
		&n.Title,
		&n.Content,
		&n.OwnerUID,
		&ownerEmail,
		&folderID,
		&tagsJSON,
		&sharesJSON,
		&createdAt,
		&updatedAt,
		&editedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}

	n.RemoteID = nullToStr(remoteID)
	n.OwnerEmail = nullToStr(ownerEmail)
	n.FolderID = nullToStr(folderID)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	n.EditedAt = nullStringToTime(editedAt)
	n.SyncStatus = model.SyncState(status)

	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &n.TagIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag ids: %w", err)
		}
	}
	if sharesJSON.Valid && sharesJSON.String != "" && sharesJSON.String != "null" {
		if err := json.Unmarshal([]byte(sharesJSON.String), &n.Shares); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shares: %w", err)
		}
	}

	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]*model.Note, error) {
	var notes []*model.Note
	for rows.Next() {
		n, err := scanNoteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func marshalNoteBlobs(n *model.Note) (tagsJSON, sharesJSON string, err error) {
	tags, err := json.Marshal(n.TagIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tag ids: %w", err)
	}
	shares, err := json.Marshal(n.Shares)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal shares: %w", err)
	}
	return string(tags), string(shares), nil
}
