// Package notification holds the notification model and the materializer that
// turns (recipient, event, winning subscription) into persisted records.
package notification

import (
	"context"
	"errors"
	"time"
)

// SystemUser is the reserved recipient that receives one audit copy of every
// event, regardless of subscriptions. Real user IDs must never collide with it.
const SystemUser = "system"

// ErrNotFound is returned by stores when no notification matches.
var ErrNotFound = errors.New("notification not found")

// Severity classifies a notification. The set is closed; anything unmapped
// falls back to SeverityInfo.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Notification is one delivered copy of an event for one recipient.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Severity  Severity  `json:"severity" db:"severity"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	// ObjectPath is the normalized path of the event that produced this
	// notification.
	ObjectPath string `json:"object_path" db:"object_path"`
	ActionURL  string `json:"action_url" db:"action_url"`
	// SubscriptionID references the subscription that caused delivery. Nil
	// for the system audit copy, and cleared when the subscription is
	// deleted.
	SubscriptionID *string `json:"subscription_id" db:"subscription_id"`
	// Inherited is true when the causing subscription sits on an ancestor
	// of the event path rather than the path itself.
	Inherited bool `json:"inherited" db:"inherited"`
	// ExtraData carries the original event payload for audit and debugging.
	ExtraData map[string]any `json:"extra_data"`
}

// Filter narrows notification queries. Zero values mean "no constraint".
type Filter struct {
	Path      string
	EventType string
	Severity  string
	From      time.Time
	To        time.Time
	// IsRead filters on the read flag when non-nil.
	IsRead *bool
	// Search matches title or content substrings, case-insensitively.
	Search string
}

// Store is the persistence port for notifications. Records are created once
// and only ever mutated by marking them read; the read flag is monotonic.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	FindByUser(ctx context.Context, userID string, f Filter, limit, offset int) ([]Notification, error)
	// FindAll serves the system log view: every notification, newest first,
	// with no recipient scoping.
	FindAll(ctx context.Context, f Filter, limit, offset int) ([]Notification, error)
	// MarkRead flips the read flag for one of the user's notifications.
	MarkRead(ctx context.Context, id, userID string) error
	// BulkMarkRead marks the given notifications read, scoped to the user,
	// and returns how many rows changed.
	BulkMarkRead(ctx context.Context, ids []string, userID string) (int64, error)
}
