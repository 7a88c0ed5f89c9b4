package model

import (
	"fmt"
	"time"
)

// Folder groups notes. Notes reference folders by remote id through an
// optional foreign id; deleting a folder leaves its notes unfiled.
type Folder struct {
	LocalID  int64  `json:"local_id,omitempty" firestore:"-"`
	RemoteID string `json:"remote_id,omitempty" firestore:"-"`

	Name  string `json:"name" firestore:"name"`
	Color string `json:"color,omitempty" firestore:"color,omitempty"`

	OwnerUID string `json:"owner_uid" firestore:"ownerUid"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`

	SyncStatus SyncState `json:"sync_status,omitempty" firestore:"-"`
}

// Validate checks field values.
func (f *Folder) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(f.Name) > 100 {
		return fmt.Errorf("name must be 100 characters or less (got %d)", len(f.Name))
	}
	if f.Color != "" && !colorPattern.MatchString(f.Color) {
		return fmt.Errorf("color must be a #rrggbb hex value (got %q)", f.Color)
	}
	if f.OwnerUID == "" {
		return fmt.Errorf("owner_uid is required")
	}
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if f.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (f *Folder) SetDefaults() {
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}
	if f.SyncStatus == "" {
		f.SyncStatus = SyncStatePending
	}
}

// RemoteKey returns the external id used for merge de-duplication.
func (f *Folder) RemoteKey() string { return f.RemoteID }

// OrderTime returns the natural ordering key for merged folder lists.
func (f *Folder) OrderTime() time.Time { return f.UpdatedAt }
