package model

import (
	"fmt"
	"regexp"
	"time"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Tag labels notes and events. Referenced by remote id; there are no
// cascading delete semantics, so a dangling reference is tolerated and
// skipped at render time.
type Tag struct {
	LocalID  int64  `json:"local_id,omitempty" firestore:"-"`
	RemoteID string `json:"remote_id,omitempty" firestore:"-"`

	Name  string `json:"name" firestore:"name"`
	Color string `json:"color,omitempty" firestore:"color,omitempty"`

	CreatorUID string `json:"creator_uid" firestore:"creatorUid"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`

	SyncStatus SyncState `json:"sync_status,omitempty" firestore:"-"`
}

// Validate checks field values.
func (t *Tag) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.Name) > 100 {
		return fmt.Errorf("name must be 100 characters or less (got %d)", len(t.Name))
	}
	if t.Color != "" && !colorPattern.MatchString(t.Color) {
		return fmt.Errorf("color must be a #rrggbb hex value (got %q)", t.Color)
	}
	if t.CreatorUID == "" {
		return fmt.Errorf("creator_uid is required")
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Tag) SetDefaults() {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.SyncStatus == "" {
		t.SyncStatus = SyncStatePending
	}
}

// RemoteKey returns the external id used for merge de-duplication.
func (t *Tag) RemoteKey() string { return t.RemoteID }

// OrderTime returns the natural ordering key for merged tag lists.
func (t *Tag) OrderTime() time.Time { return t.UpdatedAt }
