// Package event defines the canonical model for events consumed from the bus.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMalformed indicates an event missing objectPath or eventType. Such
// events are dropped, never retried.
var ErrMalformed = errors.New("malformed event")

// Well-known event types. Any other type is valid; these just get dedicated
// notification phrasing.
const (
	TypeCreated   = "created"
	TypeUpdated   = "updated"
	TypeDeleted   = "deleted"
	TypeCommented = "commented"
)

// Event is a domain event tagged with a hierarchical object path. Events are
// transient: they are consumed, fanned out, and discarded.
type Event struct {
	ID         string         `json:"id"`
	ObjectPath string         `json:"object_path"`
	EventType  string         `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data"`

	// Subject is the bus subject the event arrived on, kept for the audit
	// trail. Not part of the wire payload.
	Subject string `json:"-"`
}

// Decode parses a bus message body into an Event and validates the required
// fields. Returns ErrMalformed when objectPath or eventType is absent.
func Decode(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.ObjectPath == "" {
		return nil, fmt.Errorf("%w: missing object_path", ErrMalformed)
	}
	if ev.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformed)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return &ev, nil
}

// ActorName returns the acting user's display name from the payload, or
// "Someone" when absent.
func (e *Event) ActorName() string {
	if name, ok := e.Data["user_name"].(string); ok && name != "" {
		return name
	}
	return "Someone"
}

// Comment returns the comment text carried by commented events, or "".
func (e *Event) Comment() string {
	c, _ := e.Data["comment"].(string)
	return c
}

// Payload returns the full event as a generic map, used to preserve the
// original payload in a notification's extra data.
func (e *Event) Payload() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"object_path": e.ObjectPath,
		"event_type":  e.EventType,
		"timestamp":   e.Timestamp.Format(time.RFC3339),
		"data":        e.Data,
	}
}
