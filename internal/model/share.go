package model

import (
	"fmt"
	"strings"
	"time"
)

// AccessLevel is the permission a share grants its recipient.
type AccessLevel string

const (
	// AccessView allows reading the record only.
	AccessView AccessLevel = "view"
	// AccessEdit allows reading and modifying the record.
	AccessEdit AccessLevel = "edit"
)

// Valid reports whether a is a known access level.
func (a AccessLevel) Valid() bool {
	return a == AccessView || a == AccessEdit
}

// ShareStatus tracks whether the recipient has acted on the invitation.
type ShareStatus string

const (
	// SharePending means the recipient has not accepted yet.
	SharePending ShareStatus = "pending"
	// ShareAccepted means the recipient accepted the share.
	ShareAccepted ShareStatus = "accepted"
)

// Valid reports whether s is a known share status.
func (s ShareStatus) Valid() bool {
	return s == SharePending || s == ShareAccepted
}

// SharePermission links a note or event to a recipient with an access
// level. Shares are embedded in their parent record and travel with it;
// only the owner mutates them.
type SharePermission struct {
	RecipientEmail string      `json:"recipient_email" firestore:"recipientEmail"`
	Access         AccessLevel `json:"access" firestore:"access"`
	Status         ShareStatus `json:"status" firestore:"status"`
	GrantedAt      time.Time   `json:"granted_at" firestore:"grantedAt"`
}

// Validate checks field values.
func (s *SharePermission) Validate() error {
	if s.RecipientEmail == "" {
		return fmt.Errorf("recipient_email is required")
	}
	if !strings.Contains(s.RecipientEmail, "@") {
		return fmt.Errorf("recipient_email %q is not an email address", s.RecipientEmail)
	}
	if !s.Access.Valid() {
		return fmt.Errorf("access must be %q or %q (got %q)", AccessView, AccessEdit, s.Access)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("status must be %q or %q (got %q)", SharePending, ShareAccepted, s.Status)
	}
	return nil
}

// NewShare builds a pending share for the given recipient.
func NewShare(email string, access AccessLevel) SharePermission {
	return SharePermission{
		RecipientEmail: email,
		Access:         access,
		Status:         SharePending,
		GrantedAt:      time.Now(),
	}
}
