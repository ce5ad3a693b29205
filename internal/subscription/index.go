package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"
)

// Index retrieves candidate subscriptions for an event path. It reads the
// store fresh on every call; subscriptions are never cached across events.
type Index struct {
	store Store
}

// NewIndex creates an Index over the given store.
func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// CandidatesFor returns the union of direct subscriptions on the normalized
// path and ancestor subscriptions marked to include children. No per-user
// deduplication happens here; that is Resolve's job. An empty result is an
// ordinary outcome, not an error.
func (ix *Index) CandidatesFor(ctx context.Context, path string) ([]Subscription, error) {
	norm := hierarchy.Normalize(path)

	direct, err := ix.store.FindByPath(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("direct subscriptions for %s: %w", norm, err)
	}

	ancestors := hierarchy.Ancestors(norm)
	if len(ancestors) == 0 {
		return direct, nil
	}

	inherited, err := ix.store.FindByPathsWithChildren(ctx, ancestors)
	if err != nil {
		return nil, fmt.Errorf("ancestor subscriptions for %s: %w", norm, err)
	}

	return append(direct, inherited...), nil
}

// Match describes how a user is subscribed to a path: directly, through an
// ancestor, or both. Used by the subscription check endpoint.
type Match struct {
	Path      string        `json:"path"`
	Direct    *Subscription `json:"direct_subscription"`
	Inherited *Subscription `json:"inherited_subscription"`
}

// Subscribed reports whether any subscription covers the path.
func (m *Match) Subscribed() bool {
	return m.Direct != nil || m.Inherited != nil
}

// Check looks up how (if at all) a user is subscribed to a path. The
// inherited match is the nearest ancestor subscription with IncludeChildren.
func (ix *Index) Check(ctx context.Context, userID, path string) (*Match, error) {
	norm := hierarchy.Normalize(path)
	m := &Match{Path: norm}

	direct, err := ix.store.FindByUserAndPath(ctx, userID, norm)
	if err == nil {
		m.Direct = direct
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("direct subscription check for %s: %w", norm, err)
	}

	for _, ancestor := range hierarchy.Ancestors(norm) {
		sub, err := ix.store.FindByUserAndPath(ctx, userID, ancestor)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ancestor subscription check for %s: %w", ancestor, err)
		}
		if sub.IncludeChildren {
			m.Inherited = sub
			break
		}
	}
	return m, nil
}
