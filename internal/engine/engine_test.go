package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/event"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

// fakeSubs serves candidate queries from a fixed slice.
type fakeSubs struct {
	subscription.Store
	subs []subscription.Subscription
	// failures counts down; while positive, reads fail.
	failures int
	mu       sync.Mutex
}

func (f *fakeSubs) FindByPath(_ context.Context, path string) ([]subscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("store unavailable")
	}
	var out []subscription.Subscription
	for _, s := range f.subs {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubs) FindByPathsWithChildren(_ context.Context, paths []string) ([]subscription.Subscription, error) {
	var out []subscription.Subscription
	for _, s := range f.subs {
		if s.IncludeChildren && slices.Contains(paths, s.Path) {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeNotes records created notifications and can fail per user.
type fakeNotes struct {
	notification.Store
	mu      sync.Mutex
	created []*notification.Notification
	failFor map[string]int // user -> remaining failures
}

func (f *fakeNotes) Create(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if left, ok := f.failFor[n.UserID]; ok && left > 0 {
		f.failFor[n.UserID] = left - 1
		return errors.New("disk on fire")
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotes) byUser(user string) []*notification.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.Notification
	for _, n := range f.created {
		if n.UserID == user {
			out = append(out, n)
		}
	}
	return out
}

// fakePush records pushes and can fail per user.
type fakePush struct {
	mu      sync.Mutex
	pushed  []string // user IDs in push order
	failFor map[string]bool
}

func (f *fakePush) PushUserNotification(_ context.Context, userID string, _ *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[userID] {
		return errors.New("transport gone")
	}
	f.pushed = append(f.pushed, userID)
	return nil
}

type fixedSeverities map[string]notification.Severity

func (s fixedSeverities) DefaultSeverityFor(_ context.Context, eventType string) notification.Severity {
	if sev, ok := s[eventType]; ok {
		return sev
	}
	return notification.SeverityInfo
}

func sub(id, user, path string, children bool, types ...string) subscription.Subscription {
	return subscription.Subscription{
		ID:                id,
		UserID:            user,
		Path:              path,
		IncludeChildren:   children,
		NotificationTypes: types,
		CreatedAt:         time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(t *testing.T, subs *fakeSubs, notes *fakeNotes, push *fakePush) *Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mat := notification.NewMaterializer(notes, fixedSeverities{"deleted": notification.SeverityWarning}, "/app")
	return New(ctx, subscription.NewIndex(subs), mat, push, config.EngineConf{
		EventWorkers:    2,
		DeliveryWorkers: 4,
		QueueDepth:      16,
	})
}

func ev(path, eventType string, data map[string]any) *event.Event {
	return &event.Event{
		ID:         "ev-1",
		ObjectPath: path,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
}

// Two subscribers: A directly on /projects/x (all types), B on /projects with
// include_children and types restricted to created.
func twoUserFixture() *fakeSubs {
	return &fakeSubs{subs: []subscription.Subscription{
		sub("sa", "userA", "/projects/x", false),
		sub("sb", "userB", "/projects", true, "created"),
	}}
}

func TestProcessEndToEndCreated(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{}
	push := &fakePush{}
	e := newTestEngine(t, subs, notes, push)

	res := e.Process(context.Background(), ev("/projects/x", "created", map[string]any{"user_name": "Nina"}))

	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 3, res.Created) // A + B + system audit
	assert.Equal(t, 2, res.Pushed)
	assert.Equal(t, 0, res.Misses)

	a := notes.byUser("userA")
	require.Len(t, a, 1)
	assert.Equal(t, "New X created", a[0].Title)
	assert.Equal(t, "Nina created a new X", a[0].Content)
	assert.False(t, a[0].Inherited)

	b := notes.byUser("userB")
	require.Len(t, b, 1)
	assert.True(t, b[0].Inherited)
	assert.Equal(t, "Nina created a new X", b[0].Content)

	sys := notes.byUser(notification.SystemUser)
	require.Len(t, sys, 1)
	assert.Nil(t, sys[0].SubscriptionID)

	push.mu.Lock()
	defer push.mu.Unlock()
	assert.Len(t, push.pushed, 2)
	assert.NotContains(t, push.pushed, notification.SystemUser)
}

func TestProcessTypeFilteredOut(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{}
	push := &fakePush{}
	e := newTestEngine(t, subs, notes, push)

	res := e.Process(context.Background(), ev("/projects/x", "deleted", map[string]any{"user_name": "Nina"}))

	// B only subscribes to created.
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.Created) // A + system audit
	assert.Equal(t, 1, res.Pushed)
	assert.Empty(t, notes.byUser("userB"))
	require.Len(t, notes.byUser("userA"), 1)
	assert.Equal(t, notification.SeverityWarning, notes.byUser("userA")[0].Severity)
}

func TestProcessZeroMatchesStillAudits(t *testing.T) {
	notes := &fakeNotes{}
	e := newTestEngine(t, &fakeSubs{}, notes, &fakePush{})

	res := e.Process(context.Background(), ev("/lonely", "created", nil))

	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Created)
	require.Len(t, notes.byUser(notification.SystemUser), 1)
}

func TestProcessPushFailureIsIsolated(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{}
	push := &fakePush{failFor: map[string]bool{"userA": true}}
	e := newTestEngine(t, subs, notes, push)

	res := e.Process(context.Background(), ev("/projects/x", "created", nil))

	// A's notification is persisted despite the failed push; B unaffected.
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 0, res.Misses)
	require.Len(t, notes.byUser("userA"), 1)
	require.Len(t, notes.byUser("userB"), 1)
}

func TestProcessPersistenceRetriesOnce(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{failFor: map[string]int{"userA": 1}}
	push := &fakePush{}
	e := newTestEngine(t, subs, notes, push)

	res := e.Process(context.Background(), ev("/projects/x", "created", nil))

	// One transient failure: the retry lands the write.
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Misses)
	require.Len(t, notes.byUser("userA"), 1)
}

func TestProcessPersistentFailureIsAMiss(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{failFor: map[string]int{"userA": 2}}
	push := &fakePush{}
	e := newTestEngine(t, subs, notes, push)

	res := e.Process(context.Background(), ev("/projects/x", "created", nil))

	// A misses after the single retry; B and the audit copy are untouched.
	assert.Equal(t, 1, res.Misses)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, notes.byUser("userA"))
	require.Len(t, notes.byUser("userB"), 1)
	require.Len(t, notes.byUser(notification.SystemUser), 1)
}

func TestProcessSubscriptionReadRetries(t *testing.T) {
	subs := twoUserFixture()
	subs.failures = 1 // first read fails, retry succeeds
	notes := &fakeNotes{}
	e := newTestEngine(t, subs, notes, &fakePush{})

	res := e.Process(context.Background(), ev("/projects/x", "created", nil))
	assert.Equal(t, 2, res.Matched)

	// Two consecutive failures: audit copy only.
	subs.failures = 2
	notes2 := &fakeNotes{}
	e2 := newTestEngine(t, subs, notes2, &fakePush{})
	res = e2.Process(context.Background(), ev("/projects/x", "created", nil))
	assert.Equal(t, 0, res.Matched)
	require.Len(t, notes2.byUser(notification.SystemUser), 1)
}

func TestHandleMessage(t *testing.T) {
	subs := twoUserFixture()
	notes := &fakeNotes{}
	e := newTestEngine(t, subs, notes, &fakePush{})

	e.HandleMessage("app.events.projects.x.created",
		[]byte(`{"object_path":"/projects/x","event_type":"created","data":{"user_name":"Nina"}}`))

	require.Eventually(t, func() bool {
		return len(notes.byUser(notification.SystemUser)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Malformed events are dropped without reaching the pipeline.
	before := len(notes.created)
	e.HandleMessage("app.events.bad", []byte(`{"event_type":"created"}`))
	time.Sleep(50 * time.Millisecond)
	notes.mu.Lock()
	after := len(notes.created)
	notes.mu.Unlock()
	assert.Equal(t, before, after)
}

func TestShutdownDrainsQueuedEvents(t *testing.T) {
	notes := &fakeNotes{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mat := notification.NewMaterializer(notes, fixedSeverities{}, "/app")
	e := New(ctx, subscription.NewIndex(&fakeSubs{}), mat, &fakePush{}, config.EngineConf{
		EventWorkers:    1,
		DeliveryWorkers: 2,
		QueueDepth:      8,
	})

	for i := 0; i < 5; i++ {
		e.HandleMessage("app.events.p.created",
			[]byte(`{"object_path":"/p","event_type":"created"}`))
	}

	// Shutdown must let queued events finish rather than dropping them.
	e.Shutdown()
	require.Len(t, notes.byUser(notification.SystemUser), 5)
}
