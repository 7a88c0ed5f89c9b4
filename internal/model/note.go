// Package model defines the entities shared by the local cache and the
// remote document store.
//
// Every record has a dual-id shape: LocalID is the rowid assigned by the
// embedded SQLite cache, RemoteID is the document id assigned by the hosted
// store once the record has been uploaded. A record with an empty RemoteID
// is offline-only and pending sync. Fields are flat with last-write-wins
// semantics; the UpdatedAt timestamp is the freshness key for merges.
package model

import (
	"fmt"
	"time"
)

// SyncState describes where a record stands relative to the remote store.
type SyncState string

const (
	// SyncStateSynced means the record matches the last known remote copy.
	SyncStateSynced SyncState = "synced"
	// SyncStatePending means a local change has not been uploaded yet.
	SyncStatePending SyncState = "pending"
	// SyncStateError means the last upload attempt failed; the outbox will
	// retry, and the failure is surfaced to the user instead of swallowed.
	SyncStateError SyncState = "error"
)

// Valid reports whether s is a known sync state.
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateSynced, SyncStatePending, SyncStateError:
		return true
	}
	return false
}

// Note is a rich-text note. Content holds the serialized block document;
// it is parsed at the storage boundary with ParseDocument, never trusted raw.
type Note struct {
	// LocalID is the SQLite rowid. Zero until stored locally.
	LocalID int64 `json:"local_id,omitempty" firestore:"-"`

	// RemoteID is the hosted store's document id. Empty means the note
	// exists only on this device.
	RemoteID string `json:"remote_id,omitempty" firestore:"-"`

	Title   string `json:"title" firestore:"title"`
	Content string `json:"content,omitempty" firestore:"content,omitempty"`

	// OwnerUID is the identity provider's stable user id.
	OwnerUID   string `json:"owner_uid" firestore:"ownerUid"`
	OwnerEmail string `json:"owner_email,omitempty" firestore:"ownerEmail,omitempty"`

	// FolderID references a Folder by remote id. Optional.
	FolderID string `json:"folder_id,omitempty" firestore:"folderId,omitempty"`

	// TagIDs references Tags by remote id. Optional.
	TagIDs []string `json:"tag_ids,omitempty" firestore:"tagIds,omitempty"`

	// Shares lists per-recipient access grants. Owner-only mutation.
	Shares []SharePermission `json:"shares,omitempty" firestore:"shares,omitempty"`

	CreatedAt time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time  `json:"updated_at" firestore:"updatedAt"`
	EditedAt  *time.Time `json:"edited_at,omitempty" firestore:"editedAt,omitempty"`

	// SyncStatus is local bookkeeping; it never leaves the device.
	SyncStatus SyncState `json:"sync_status,omitempty" firestore:"-"`
}

// Validate checks that the note has the fields every code path relies on.
func (n *Note) Validate() error {
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(n.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(n.Title))
	}
	if n.OwnerUID == "" {
		return fmt.Errorf("owner_uid is required")
	}
	if n.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if n.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if n.SyncStatus != "" && !n.SyncStatus.Valid() {
		return fmt.Errorf("invalid sync status: %s", n.SyncStatus)
	}
	for i := range n.Shares {
		if err := n.Shares[i].Validate(); err != nil {
			return fmt.Errorf("share %d: %w", i, err)
		}
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (n *Note) SetDefaults() {
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	if n.SyncStatus == "" {
		n.SyncStatus = SyncStatePending
	}
}

// Touch sets UpdatedAt and EditedAt to the current time.
// Call on every content mutation so merges resolve correctly.
func (n *Note) Touch() {
	now := time.Now()
	n.UpdatedAt = now
	n.EditedAt = &now
}

// RemoteKey returns the external id used for merge de-duplication.
func (n *Note) RemoteKey() string { return n.RemoteID }

// OrderTime returns the natural ordering key for merged note lists.
func (n *Note) OrderTime() time.Time { return n.UpdatedAt }
