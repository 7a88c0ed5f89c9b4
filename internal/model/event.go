package model

import (
	"fmt"
	"time"
)

// CalendarEvent is a scheduled entry on the user's calendar.
// Events share the dual-id shape of notes and merge the same way,
// except their natural ordering key is the start time.
type CalendarEvent struct {
	LocalID  int64  `json:"local_id,omitempty" firestore:"-"`
	RemoteID string `json:"remote_id,omitempty" firestore:"-"`

	Title       string `json:"title" firestore:"title"`
	Description string `json:"description,omitempty" firestore:"description,omitempty"`

	StartAt time.Time `json:"start_at" firestore:"startAt"`
	EndAt   time.Time `json:"end_at" firestore:"endAt"`
	AllDay  bool      `json:"all_day,omitempty" firestore:"allDay,omitempty"`

	OwnerUID   string `json:"owner_uid" firestore:"ownerUid"`
	OwnerEmail string `json:"owner_email,omitempty" firestore:"ownerEmail,omitempty"`

	TagIDs []string          `json:"tag_ids,omitempty" firestore:"tagIds,omitempty"`
	Shares []SharePermission `json:"shares,omitempty" firestore:"shares,omitempty"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`

	SyncStatus SyncState `json:"sync_status,omitempty" firestore:"-"`
}

// Validate checks field values. End must not precede start; an all-day
// event may have equal start and end.
func (e *CalendarEvent) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.OwnerUID == "" {
		return fmt.Errorf("owner_uid is required")
	}
	if e.StartAt.IsZero() {
		return fmt.Errorf("start_at is required")
	}
	if e.EndAt.IsZero() {
		return fmt.Errorf("end_at is required")
	}
	if e.EndAt.Before(e.StartAt) {
		return fmt.Errorf("end_at %s precedes start_at %s", e.EndAt.Format(time.RFC3339), e.StartAt.Format(time.RFC3339))
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if e.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	for i := range e.Shares {
		if err := e.Shares[i].Validate(); err != nil {
			return fmt.Errorf("share %d: %w", i, err)
		}
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (e *CalendarEvent) SetDefaults() {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	if e.EndAt.IsZero() && !e.StartAt.IsZero() {
		if e.AllDay {
			e.EndAt = e.StartAt
		} else {
			e.EndAt = e.StartAt.Add(time.Hour)
		}
	}
	if e.SyncStatus == "" {
		e.SyncStatus = SyncStatePending
	}
}

// Touch sets UpdatedAt to the current time.
func (e *CalendarEvent) Touch() { e.UpdatedAt = time.Now() }

// RemoteKey returns the external id used for merge de-duplication.
func (e *CalendarEvent) RemoteKey() string { return e.RemoteID }

// OrderTime returns the natural ordering key: the event start time.
func (e *CalendarEvent) OrderTime() time.Time { return e.StartAt }
