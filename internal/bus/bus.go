// Package bus wraps the NATS connection: the inbound event subscription,
// the per-user live push channel, and best-effort JetStream stream
// provisioning.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
)

const (
	// SubjectEvents is the wildcard subject application events arrive on.
	SubjectEvents = "app.events.>"
	// SubjectNotifications covers every per-user push subject.
	SubjectNotifications = "notification.>"

	eventsQueueGroup = "notifyhub-engine"
)

// UserSubject returns the push subject for one user's notifications.
func UserSubject(userID string) string {
	return "notification.user." + userID
}

// Bus is a connected NATS client scoped to this service's subjects.
type Bus struct {
	nc *nats.Conn
}

// Connect dials NATS and provisions the EVENTS and NOTIFICATIONS streams.
// Stream provisioning is best effort: the service works identically on a
// server without JetStream, just without replay.
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	b := &Bus{nc: nc}
	b.provisionStreams()
	return b, nil
}

func (b *Bus) provisionStreams() {
	js, err := b.nc.JetStream()
	if err != nil {
		slog.Warn("jetstream unavailable, continuing without streams", "err", err)
		return
	}
	for _, sc := range []nats.StreamConfig{
		{Name: "EVENTS", Subjects: []string{SubjectEvents}},
		{Name: "NOTIFICATIONS", Subjects: []string{SubjectNotifications}},
	} {
		if _, err := js.AddStream(&sc); err != nil {
			slog.Warn("stream not provisioned", "stream", sc.Name, "err", err)
		}
	}
}

// SubscribeEvents routes every inbound application event to handler. The
// subscription joins a queue group so horizontally scaled instances split
// the event load instead of duplicating it.
func (b *Bus) SubscribeEvents(handler func(subject string, body []byte)) (*nats.Subscription, error) {
	sub, err := b.nc.QueueSubscribe(SubjectEvents, eventsQueueGroup, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectEvents, err)
	}
	return sub, nil
}

// SubscribeUser delivers one user's live notifications to handler, raw JSON
// as published. Callers must Unsubscribe when done; the websocket relay
// holds one of these per connection.
func (b *Bus) SubscribeUser(userID string, handler func(body []byte)) (*nats.Subscription, error) {
	subject := UserSubject(userID)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// PushUserNotification publishes a persisted notification to the user's
// live channel. Implements the engine's push transport.
func (b *Bus) PushUserNotification(_ context.Context, userID string, n *notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	if err := b.nc.Publish(UserSubject(userID), body); err != nil {
		return fmt.Errorf("publish to %s: %w", UserSubject(userID), err)
	}
	return nil
}

// PublishEvent publishes an application event body to its subject. Used by
// the synthetic generator; the service itself only consumes events.
func (b *Bus) PublishEvent(subject string, body []byte) error {
	if err := b.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Flush waits for published messages to reach the server.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// Close drains the connection, letting in-flight handlers finish.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}
