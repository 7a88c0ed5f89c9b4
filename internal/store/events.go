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

// CreateEvent inserts a new calendar event and assigns its LocalID.
func (db *DB) CreateEvent(ctx context.Context, e *model.CalendarEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalEventBlobs(e)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO events (
		remote_id, title, description, start_at, end_at, all_day,
		owner_uid, owner_email, tag_ids, shares, created_at, updated_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		strToNull(e.RemoteID),
		e.Title,
		strToNull(e.Description),
		e.StartAt.Format(time.RFC3339Nano),
		e.EndAt.Format(time.RFC3339Nano),
		boolToInt(e.AllDay),
		e.OwnerUID,
		strToNull(e.OwnerEmail),
		tagsJSON,
		sharesJSON,
		e.CreatedAt.Format(time.RFC3339Nano),
		e.UpdatedAt.Format(time.RFC3339Nano),
		string(e.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event rowid: %w", err)
	}
	e.LocalID = id
	return nil
}

// UpdateEvent rewrites an existing event by LocalID.
func (db *DB) UpdateEvent(ctx context.Context, e *model.CalendarEvent) error {
	if e.LocalID == 0 {
		return fmt.Errorf("event has no local id")
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalEventBlobs(e)
	if err != nil {
		return err
	}

	query := `
	UPDATE events SET
		remote_id = ?, title = ?, description = ?, start_at = ?, end_at = ?,
		all_day = ?, owner_uid = ?, owner_email = ?, tag_ids = ?, shares = ?,
		created_at = ?, updated_at = ?, sync_status = ?
	WHERE id = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		strToNull(e.RemoteID),
		e.Title,
		strToNull(e.Description),
		e.StartAt.Format(time.RFC3339Nano),
		e.EndAt.Format(time.RFC3339Nano),
		boolToInt(e.AllDay),
		e.OwnerUID,
		strToNull(e.OwnerEmail),
		tagsJSON,
		sharesJSON,
		e.CreatedAt.Format(time.RFC3339Nano),
		e.UpdatedAt.Format(time.RFC3339Nano),
		string(e.SyncStatus),
		e.LocalID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", e.LocalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %d: %w", e.LocalID, ErrNotFound)
	}
	return nil
}

// ApplyRemoteEvent applies an authoritative remote copy to the cache.
// The remote version replaces any cached row with the same remote id.
func (db *DB) ApplyRemoteEvent(ctx context.Context, e *model.CalendarEvent) error {
	if e.RemoteID == "" {
		return fmt.Errorf("remote event has no remote id")
	}
	e.SyncStatus = model.SyncStateSynced
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	tagsJSON, sharesJSON, err := marshalEventBlobs(e)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO events (
		remote_id, title, description, start_at, end_at, all_day,
		owner_uid, owner_email, tag_ids, shares, created_at, updated_at, sync_status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(remote_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		start_at = excluded.start_at,
		end_at = excluded.end_at,
		all_day = excluded.all_day,
		owner_uid = excluded.owner_uid,
		owner_email = excluded.owner_email,
		tag_ids = excluded.tag_ids,
		shares = excluded.shares,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status
	`

	_, err = db.conn.ExecContext(ctx, query,
		e.RemoteID,
		e.Title,
		strToNull(e.Description),
		e.StartAt.Format(time.RFC3339Nano),
		e.EndAt.Format(time.RFC3339Nano),
		boolToInt(e.AllDay),
		e.OwnerUID,
		strToNull(e.OwnerEmail),
		tagsJSON,
		sharesJSON,
		e.CreatedAt.Format(time.RFC3339Nano),
		e.UpdatedAt.Format(time.RFC3339Nano),
		string(e.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote event %s: %w", e.RemoteID, err)
	}
	return nil
}

// GetEvent retrieves an event by local id.
func (db *DB) GetEvent(ctx context.Context, localID int64) (*model.CalendarEvent, error) {
	row := db.conn.QueryRowContext(ctx, eventSelect+` WHERE id = ?`, localID)
	e, err := scanEventRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", localID, ErrNotFound)
	}
	return e, err
}

// GetEventByRemoteID retrieves an event by its hosted-store document id.
func (db *DB) GetEventByRemoteID(ctx context.Context, remoteID string) (*model.CalendarEvent, error) {
	row := db.conn.QueryRowContext(ctx, eventSelect+` WHERE remote_id = ?`, remoteID)
	e, err := scanEventRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", remoteID, ErrNotFound)
	}
	return e, err
}

// EventFilter configures the ListEvents query.
type EventFilter struct {
	// OwnerUID filters by owner (empty = all).
	OwnerUID string
	// From/Until bound the event start time. Zero values mean unbounded.
	From  time.Time
	Until time.Time
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListEvents retrieves events matching the filter, ordered by start time.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]*model.CalendarEvent, error) {
	var conditions []string
	var args []interface{}

	if filter.OwnerUID != "" {
		conditions = append(conditions, "owner_uid = ?")
		args = append(args, filter.OwnerUID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "start_at >= ?")
		args = append(args, filter.From.Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "start_at < ?")
		args = append(args, filter.Until.Format(time.RFC3339Nano))
	}

	query := eventSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.CalendarEvent
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes an event row. Idempotent.
func (db *DB) DeleteEvent(ctx context.Context, localID int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete event %d: %w", localID, err)
	}
	return nil
}

// SetEventSync records the outcome of a mirror attempt.
func (db *DB) SetEventSync(ctx context.Context, localID int64, remoteID string, state model.SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE events SET remote_id = COALESCE(?, remote_id), sync_status = ? WHERE id = ?`,
		strToNull(remoteID), string(state), localID)
	if err != nil {
		return fmt.Errorf("failed to set event %d sync state: %w", localID, err)
	}
	return nil
}

const eventSelect = `
	SELECT id, remote_id, title, description, start_at, end_at, all_day,
	       owner_uid, owner_email, tag_ids, shares, created_at, updated_at, sync_status
	FROM events`

func scanEventRow(row rowScanner) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var remoteID, description, ownerEmail, tagsJSON, sharesJSON sql.NullString
	var startAt, endAt, createdAt, updatedAt, status string
	var allDay int

	err := row.Scan(
		&e.LocalID,
		&remoteID,
		&e.Title,
		&description,
		&startAt,
		&endAt,
		&allDay,
		&e.OwnerUID,
		&ownerEmail,
		&tagsJSON,
		&sharesJSON,
		&createdAt,
		&updatedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}

	e.RemoteID = nullToStr(remoteID)
	e.Description = nullToStr(description)
	e.OwnerEmail = nullToStr(ownerEmail)
	e.StartAt = parseTime(startAt)
	e.EndAt = parseTime(endAt)
	e.AllDay = allDay != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	e.SyncStatus = model.SyncState(status)

	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &e.TagIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag ids: %w", err)
		}
	}
	if sharesJSON.Valid && sharesJSON.String != "" && sharesJSON.String != "null" {
		if err := json.Unmarshal([]byte(sharesJSON.String), &e.Shares); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shares: %w", err)
		}
	}

	return &e, nil
}

func marshalEventBlobs(e *model.CalendarEvent) (tagsJSON, sharesJSON string, err error) {
	tags, err := json.Marshal(e.TagIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tag ids: %w", err)
	}
	shares, err := json.Marshal(e.Shares)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal shares: %w", err)
	}
	return string(tags), string(shares), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
