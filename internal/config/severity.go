package config

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
)

// EventTypeStore is the read side of the event-type configuration table.
type EventTypeStore interface {
	// SeverityForEventType returns the configured default severity for an
	// event type, or notification.ErrNotFound when the type is unknown.
	SeverityForEventType(ctx context.Context, eventType string) (notification.Severity, error)
}

// SeverityCache answers severity lookups from the configuration table through
// a short-lived cache, so the fan-out path does one query per event type per
// TTL window instead of one per notification. Unknown or failing lookups fall
// back to info; a miss is a configuration gap, not an error.
type SeverityCache struct {
	store EventTypeStore
	cache *ttlcache.Cache[string, notification.Severity]
}

// NewSeverityCache creates a cache over the configuration store. A TTL of 30s
// keeps edits to the event_types table visible without restarting.
func NewSeverityCache(store EventTypeStore, ttl time.Duration) *SeverityCache {
	c := ttlcache.New[string, notification.Severity](
		ttlcache.WithTTL[string, notification.Severity](ttl),
		ttlcache.WithDisableTouchOnHit[string, notification.Severity](),
	)
	go c.Start()
	return &SeverityCache{store: store, cache: c}
}

// DefaultSeverityFor implements notification.SeverityLookup.
func (s *SeverityCache) DefaultSeverityFor(ctx context.Context, eventType string) notification.Severity {
	if item := s.cache.Get(eventType); item != nil {
		return item.Value()
	}

	sev, err := s.store.SeverityForEventType(ctx, eventType)
	if err != nil {
		// Unknown event types are expected; anything else is logged and
		// still resolved to the default.
		if !errors.Is(err, notification.ErrNotFound) {
			slog.Warn("severity lookup failed", "event_type", eventType, "err", err)
		}
		sev = notification.SeverityInfo
	}
	if !sev.Valid() {
		sev = notification.SeverityInfo
	}
	s.cache.Set(eventType, sev, ttlcache.DefaultTTL)
	return sev
}

// Invalidate drops all cached entries, used after the configuration table is
// re-seeded on a config hot-reload.
func (s *SeverityCache) Invalidate() {
	s.cache.DeleteAll()
}

// Stop terminates the cache's expiry goroutine.
func (s *SeverityCache) Stop() {
	s.cache.Stop()
}
