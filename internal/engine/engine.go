// Package engine runs the per-event fan-out pipeline: decode, normalize the
// path, resolve interested users, materialize one notification per winner
// plus the unconditional system-audit copy, and push each to the live
// channel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/event"
	"github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"
	"github.com/gyaneshwarpardhi/notifyhub/internal/metrics"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

// Pusher is the live-delivery transport, addressed per recipient. A push
// failure is a best-effort miss, never an engine failure.
type Pusher interface {
	PushUserNotification(ctx context.Context, userID string, n *notification.Notification) error
}

// Result summarizes one event's fan-out, mostly for tests and logging.
type Result struct {
	EventID    string `json:"event_id"`
	Path       string `json:"path"`
	Matched    int    `json:"matched"`
	Created    int    `json:"created"`
	Misses     int    `json:"misses"`
	Pushed     int    `json:"pushed"`
	DurationMs int64  `json:"duration_ms"`
}

// Engine is the fan-out dispatcher. It holds no mutable state of its own
// beyond the worker pools; subscriptions are read fresh from the store on
// every event.
type Engine struct {
	index     *subscription.Index
	mat       *notification.Materializer
	pusher    Pusher
	eventPool *workerPool[*event.Event]
	// deliverySem bounds concurrent per-recipient deliveries across events.
	deliverySem chan struct{}
}

// New creates an Engine sized by conf and starts its event workers.
func New(ctx context.Context, index *subscription.Index, mat *notification.Materializer, pusher Pusher, conf config.EngineConf) *Engine {
	e := &Engine{
		index:       index,
		mat:         mat,
		pusher:      pusher,
		deliverySem: make(chan struct{}, conf.DeliveryWorkers),
	}
	e.eventPool = newWorkerPool(ctx, conf.EventWorkers, conf.QueueDepth, func(ctx context.Context, ev *event.Event) {
		e.Process(ctx, ev)
	})
	return e
}

// HandleMessage decodes a bus message and enqueues it for processing. Used
// as the bus subscription callback. Malformed events are logged and dropped;
// a full queue drops the event and counts it.
func (e *Engine) HandleMessage(subject string, body []byte) {
	metrics.EventsReceived.Inc()

	ev, err := event.Decode(body)
	if err != nil {
		metrics.EventsMalformed.Inc()
		slog.Error("dropping malformed event", "subject", subject, "err", err)
		return
	}
	ev.Subject = subject

	if !e.eventPool.Submit(ev) {
		metrics.EventsDropped.Inc()
		slog.Warn("event queue full, dropping event", "subject", subject, "event_id", ev.ID)
		return
	}
	metrics.QueueUtilization.Set(e.QueueUtilization())
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.eventPool.QueueCap() == 0 {
		return 0
	}
	return float64(e.eventPool.QueueLen()) / float64(e.eventPool.QueueCap())
}

// Process fans out a single event synchronously. Per-recipient failures are
// isolated: a store or push error for one user never aborts the others or
// the system-audit copy.
func (e *Engine) Process(ctx context.Context, ev *event.Event) *Result {
	start := time.Now()
	path := hierarchy.Normalize(ev.ObjectPath)
	res := &Result{EventID: ev.ID, Path: path}

	winners := e.matchSubscribers(ctx, path, ev.EventType)
	res.Matched = len(winners)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for userID, sub := range winners {
		wg.Add(1)
		e.deliverySem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-e.deliverySem }()
			created, pushed := e.deliver(ctx, userID, ev, &sub)
			mu.Lock()
			if created {
				res.Created++
			} else {
				res.Misses++
			}
			if pushed {
				res.Pushed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// The audit copy is unconditional: it exists even when nothing matched,
	// and it is not pushed.
	if _, err := e.materializeWithRetry(ctx, notification.SystemUser, ev, nil); err != nil {
		metrics.DeliveryMisses.Inc()
		res.Misses++
		slog.Error("system notification failed", "event_id", ev.ID, "err", err)
	} else {
		res.Created++
	}

	res.DurationMs = time.Since(start).Milliseconds()
	metrics.EventsProcessed.Inc()
	metrics.FanoutDuration.Observe(float64(res.DurationMs))
	slog.Debug("event fanned out",
		"event_id", ev.ID, "path", path, "type", ev.EventType,
		"matched", res.Matched, "created", res.Created, "pushed", res.Pushed)
	return res
}

// matchSubscribers reads candidates fresh from the store and resolves one
// winner per user. The read is retried once on failure; after that the event
// still produces its audit copy, just with no recipients.
func (e *Engine) matchSubscribers(ctx context.Context, path, eventType string) map[string]subscription.Subscription {
	candidates, err := e.index.CandidatesFor(ctx, path)
	if err != nil {
		candidates, err = e.index.CandidatesFor(ctx, path)
	}
	if err != nil {
		slog.Error("subscription lookup failed, delivering audit copy only", "path", path, "err", err)
		return nil
	}
	return subscription.Resolve(candidates, path, eventType)
}

// deliver persists one user's notification and pushes it to the live channel.
func (e *Engine) deliver(ctx context.Context, userID string, ev *event.Event, sub *subscription.Subscription) (created, pushed bool) {
	n, err := e.materializeWithRetry(ctx, userID, ev, sub)
	if err != nil {
		metrics.DeliveryMisses.Inc()
		slog.Error("notification delivery miss", "user", userID, "event_id", ev.ID, "err", err)
		return false, false
	}

	// Best effort: the notification is already persisted, so a failed push
	// is logged and forgotten, never retried.
	if err := e.pusher.PushUserNotification(ctx, userID, n); err != nil {
		metrics.PushesFailed.Inc()
		slog.Warn("live push failed", "user", userID, "notification", n.ID, "err", err)
		return true, false
	}
	metrics.PushesSent.Inc()
	return true, true
}

// materializeWithRetry retries the persistence write once on transient
// failure before giving up on this recipient.
func (e *Engine) materializeWithRetry(ctx context.Context, userID string, ev *event.Event, sub *subscription.Subscription) (*notification.Notification, error) {
	n, err := e.mat.Materialize(ctx, userID, ev, sub)
	if err != nil {
		n, err = e.mat.Materialize(ctx, userID, ev, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("materialize for %s: %w", userID, err)
	}
	metrics.NotificationsCreated.WithLabelValues(ev.EventType).Inc()
	return n, nil
}

// Shutdown drains the event queue, letting in-flight deliveries finish.
func (e *Engine) Shutdown() {
	e.eventPool.Drain()
}
