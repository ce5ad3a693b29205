// Package subscription holds the subscription model and the hierarchical
// matching core: candidate lookup against the store and the pure resolver
// that reduces candidates to one winner per user.
package subscription

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no subscription matches.
var ErrNotFound = errors.New("subscription not found")

// Subscription is a user's interest in a hierarchical object path. At most one
// subscription exists per (user, path) pair; creating a second updates the
// first in place.
type Subscription struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	// Path is always normalized: leading slash, no trailing slash.
	Path string `json:"path" db:"path"`
	// IncludeChildren extends the subscription to every descendant path.
	IncludeChildren bool `json:"include_children" db:"include_children"`
	// NotificationTypes restricts matching to the listed event types.
	// Empty or nil means all types.
	NotificationTypes []string `json:"notification_types"`
	// Settings is an opaque per-subscription preference bag, stored and
	// returned verbatim, never interpreted by the engine.
	Settings  map[string]any `json:"settings"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// AllowsType reports whether the subscription matches events of the given
// type. An empty type list allows everything.
func (s *Subscription) AllowsType(eventType string) bool {
	if len(s.NotificationTypes) == 0 {
		return true
	}
	for _, t := range s.NotificationTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Store is the persistence port for subscriptions. The fan-out engine only
// reads; create/update/delete serve the management API.
type Store interface {
	FindByID(ctx context.Context, id string) (*Subscription, error)
	FindByUserAndPath(ctx context.Context, userID, path string) (*Subscription, error)
	// FindByUser lists a user's subscriptions, optionally restricted to a
	// path prefix, ordered by path.
	FindByUser(ctx context.Context, userID, pathPrefix string) ([]Subscription, error)
	FindByPath(ctx context.Context, path string) ([]Subscription, error)
	// FindByPathsWithChildren returns subscriptions on any of the given
	// paths that have IncludeChildren set.
	FindByPathsWithChildren(ctx context.Context, paths []string) ([]Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	// Delete removes a subscription, clearing (never cascading) the
	// subscription reference on notifications it produced.
	Delete(ctx context.Context, id string) error
}
