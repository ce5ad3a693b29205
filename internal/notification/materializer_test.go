package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/notifyhub/internal/event"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

type memStore struct {
	Store
	created []*Notification
}

func (s *memStore) Create(_ context.Context, n *Notification) error {
	s.created = append(s.created, n)
	return nil
}

type staticSeverities map[string]Severity

func (s staticSeverities) DefaultSeverityFor(_ context.Context, eventType string) Severity {
	if sev, ok := s[eventType]; ok {
		return sev
	}
	return SeverityInfo
}

func testEvent(path, eventType string, data map[string]any) *event.Event {
	return &event.Event{
		ID:         "ev-1",
		ObjectPath: path,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Subject:    "app.events.projects.x." + eventType,
	}
}

func TestMaterializeDirect(t *testing.T) {
	store := &memStore{}
	mat := NewMaterializer(store, staticSeverities{"deleted": SeverityWarning}, "/app")

	sub := &subscription.Subscription{ID: "s1", UserID: "alice", Path: "/projects/x"}
	ev := testEvent("/projects/x", "created", map[string]any{"user_name": "Nina"})

	n, err := mat.Materialize(context.Background(), "alice", ev, sub)
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, "New X created", n.Title)
	assert.Equal(t, "Nina created a new X", n.Content)
	assert.Equal(t, SeverityInfo, n.Severity)
	assert.Equal(t, "/projects/x", n.ObjectPath)
	assert.Equal(t, "/app/projects/x", n.ActionURL)
	assert.False(t, n.Inherited)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.SubscriptionID)
	assert.Equal(t, "s1", *n.SubscriptionID)
	assert.Equal(t, "/projects/x", n.ExtraData["subscription_path"])
}

func TestMaterializeInherited(t *testing.T) {
	store := &memStore{}
	mat := NewMaterializer(store, staticSeverities{}, "/app")

	sub := &subscription.Subscription{ID: "s2", UserID: "bob", Path: "/projects", IncludeChildren: true}
	ev := testEvent("/projects/x", "updated", map[string]any{"user_name": "Nina"})

	n, err := mat.Materialize(context.Background(), "bob", ev, sub)
	require.NoError(t, err)
	assert.True(t, n.Inherited)
	assert.Equal(t, "X was updated", n.Title)
	assert.Equal(t, "Nina updated X", n.Content)
}

func TestMaterializeSystemCopy(t *testing.T) {
	store := &memStore{}
	mat := NewMaterializer(store, staticSeverities{"deleted": SeverityWarning}, "/app")

	ev := testEvent("/projects/x", "deleted", nil)
	n, err := mat.Materialize(context.Background(), SystemUser, ev, nil)
	require.NoError(t, err)

	assert.Equal(t, SystemUser, n.UserID)
	assert.Nil(t, n.SubscriptionID)
	assert.False(t, n.Inherited)
	assert.Equal(t, SeverityWarning, n.Severity)
	assert.Equal(t, true, n.ExtraData["system_event"])
	assert.Equal(t, "X was deleted", n.Title)
	assert.Equal(t, "Someone deleted X", n.Content)
}

func TestTitlePhrasing(t *testing.T) {
	cases := []struct {
		path      string
		eventType string
		want      string
	}{
		{"/projects/x", "created", "New X created"},
		{"/projects/data-pipeline", "updated", "Data Pipeline was updated"},
		{"/projects/x", "deleted", "X was deleted"},
		{"/projects/x", "commented", "New comment on X"},
		{"/projects/x", "status_changed", "Status Changed on X"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Title(tc.path, tc.eventType))
	}
}

func TestContentPhrasing(t *testing.T) {
	ev := testEvent("/projects/x", "commented", map[string]any{
		"user_name": "Nina",
		"comment":   "This looks great!",
	})
	assert.Equal(t, `Nina commented on X: "This looks great!"`, Content("/projects/x", ev))

	ev = testEvent("/projects/x", "status_changed", nil)
	assert.Equal(t, "Someone performed status changed on X", Content("/projects/x", ev))
}

func TestTitleMultiByteEventType(t *testing.T) {
	assert.Equal(t, "Éscalade on X", Title("/projects/x", "éscalade"))
}
