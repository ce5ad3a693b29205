package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/notifyhub/internal/event"
	"github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

// SeverityLookup resolves the default severity for an event type.
type SeverityLookup interface {
	DefaultSeverityFor(ctx context.Context, eventType string) Severity
}

// Materializer builds and persists one notification per recipient.
type Materializer struct {
	store       Store
	severities  SeverityLookup
	routePrefix string
}

// NewMaterializer creates a Materializer. routePrefix is prepended to the
// object path to form the notification's action URL (e.g. "/app").
func NewMaterializer(store Store, severities SeverityLookup, routePrefix string) *Materializer {
	return &Materializer{store: store, severities: severities, routePrefix: routePrefix}
}

// Materialize derives a notification for userID from ev, persists it, and
// returns it. winner is the subscription that caused delivery; it is nil for
// the system audit copy, which is never marked inherited.
func (m *Materializer) Materialize(ctx context.Context, userID string, ev *event.Event, winner *subscription.Subscription) (*Notification, error) {
	path := hierarchy.Normalize(ev.ObjectPath)

	n := &Notification{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       ev.EventType,
		Title:      Title(path, ev.EventType),
		Content:    Content(path, ev),
		Severity:   m.severities.DefaultSeverityFor(ctx, ev.EventType),
		Timestamp:  time.Now().UTC(),
		ObjectPath: path,
		ActionURL:  m.routePrefix + path,
		ExtraData: map[string]any{
			"object_path": path,
			"payload":     ev.Payload(),
		},
	}
	if ev.Subject != "" {
		n.ExtraData["source_event"] = ev.Subject
	}
	if winner != nil {
		id := winner.ID
		n.SubscriptionID = &id
		n.Inherited = winner.Path != path
		n.ExtraData["subscription_path"] = winner.Path
	} else {
		n.ExtraData["system_event"] = true
	}

	if err := m.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification for %s: %w", userID, err)
	}
	return n, nil
}

// Title phrases a notification headline from the event path and type.
func Title(path, eventType string) string {
	name := hierarchy.Display(path)
	switch eventType {
	case event.TypeCreated:
		return fmt.Sprintf("New %s created", name)
	case event.TypeUpdated:
		return fmt.Sprintf("%s was updated", name)
	case event.TypeDeleted:
		return fmt.Sprintf("%s was deleted", name)
	case event.TypeCommented:
		return fmt.Sprintf("New comment on %s", name)
	default:
		return fmt.Sprintf("%s on %s", titleWords(eventType), name)
	}
}

// Content phrases the notification body, naming the acting user.
func Content(path string, ev *event.Event) string {
	name := hierarchy.Display(path)
	actor := ev.ActorName()
	switch ev.EventType {
	case event.TypeCreated:
		return fmt.Sprintf("%s created a new %s", actor, name)
	case event.TypeUpdated:
		return fmt.Sprintf("%s updated %s", actor, name)
	case event.TypeDeleted:
		return fmt.Sprintf("%s deleted %s", actor, name)
	case event.TypeCommented:
		return fmt.Sprintf("%s commented on %s: %q", actor, name, ev.Comment())
	default:
		return fmt.Sprintf("%s performed %s on %s", actor, strings.ReplaceAll(ev.EventType, "_", " "), name)
	}
}

// titleWords turns an event type like "status_changed" into "Status Changed".
func titleWords(eventType string) string {
	words := strings.Fields(strings.ReplaceAll(eventType, "_", " "))
	for i, w := range words {
		words[i] = hierarchy.Capitalize(w)
	}
	return strings.Join(words, " ")
}
