package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notifyhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderDefaults(t *testing.T) {
	path := writeConfig(t, "route_prefix: /demo\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "notifyhub.db", cfg.DBPath)
	assert.Equal(t, "/demo", cfg.RoutePrefix)
	assert.Equal(t, 8, cfg.Engine.EventWorkers)
	assert.Equal(t, 16, cfg.Engine.DeliveryWorkers)
	assert.Equal(t, 1024, cfg.Engine.QueueDepth)
	assert.NoError(t, Validate(cfg))
}

func TestLoaderReloadNotifiesCallbacks(t *testing.T) {
	path := writeConfig(t, "http_addr: \":9001\"\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	var calls atomic.Int32
	l.OnChange(func(cfg *Config) {
		calls.Add(1)
		assert.Equal(t, ":9002", cfg.HTTPAddr)
	})

	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9002\"\n"), 0o644))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, ":9002", cfg.HTTPAddr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, ":9002", l.Config().HTTPAddr)
}

func TestLoaderRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "http_addr: [unclosed\n")
	_, err := NewLoader(path)
	assert.Error(t, err)

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type stubEventTypes struct {
	severities map[string]notification.Severity
	calls      atomic.Int32
	err        error
}

func (s *stubEventTypes) SeverityForEventType(_ context.Context, eventType string) (notification.Severity, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	sev, ok := s.severities[eventType]
	if !ok {
		return "", notification.ErrNotFound
	}
	return sev, nil
}

func TestSeverityCache(t *testing.T) {
	stub := &stubEventTypes{severities: map[string]notification.Severity{
		"deleted": notification.SeverityWarning,
	}}
	c := NewSeverityCache(stub, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	assert.Equal(t, notification.SeverityWarning, c.DefaultSeverityFor(ctx, "deleted"))
	assert.Equal(t, notification.SeverityWarning, c.DefaultSeverityFor(ctx, "deleted"))
	assert.Equal(t, int32(1), stub.calls.Load()) // second hit served from cache

	// Unknown types resolve to info and are cached too.
	assert.Equal(t, notification.SeverityInfo, c.DefaultSeverityFor(ctx, "never-seen"))
	assert.Equal(t, notification.SeverityInfo, c.DefaultSeverityFor(ctx, "never-seen"))
	assert.Equal(t, int32(2), stub.calls.Load())

	// Invalidate forces a fresh read.
	c.Invalidate()
	assert.Equal(t, notification.SeverityWarning, c.DefaultSeverityFor(ctx, "deleted"))
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestSeverityCacheFallsBackOnStoreError(t *testing.T) {
	stub := &stubEventTypes{err: errors.New("db locked")}
	c := NewSeverityCache(stub, time.Minute)
	defer c.Stop()

	assert.Equal(t, notification.SeverityInfo, c.DefaultSeverityFor(context.Background(), "created"))
}
