// Package store implements the subscription, notification, and configuration
// store ports on an embedded SQLite database.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

var (
	_ subscription.Store    = (*SubscriptionStore)(nil)
	_ notification.Store    = (*NotificationStore)(nil)
	_ config.EventTypeStore = (*ConfigStore)(nil)
)

// SQLiteStore holds the database handle shared by all store implementations.
type SQLiteStore struct {
	db *sqlx.DB
}

// SubscriptionStore implements subscription.Store.
type SubscriptionStore struct {
	db *sqlx.DB
}

// NotificationStore implements notification.Store.
type NotificationStore struct {
	db *sqlx.DB
}

// ConfigStore persists the severity-level and event-type configuration
// tables.
type ConfigStore struct {
	db *sqlx.DB
}

// Subscriptions returns the subscription view of the store.
func (s *SQLiteStore) Subscriptions() *SubscriptionStore {
	return &SubscriptionStore{db: s.db}
}

// Notifications returns the notification view of the store.
func (s *SQLiteStore) Notifications() *NotificationStore {
	return &NotificationStore{db: s.db}
}

// Config returns the configuration-table view of the store.
func (s *SQLiteStore) Config() *ConfigStore {
	return &ConfigStore{db: s.db}
}

// Open opens (or creates) the SQLite database at dbPath, enables WAL mode,
// and runs any pending schema migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps the fan-out writes from blocking API reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// ObjectPaths returns every distinct object path known to the system, from
// subscriptions and notifications alike. Feeds the hierarchy browser.
func (s *SQLiteStore) ObjectPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.db.SelectContext(ctx, &paths,
		"SELECT path FROM subscriptions UNION SELECT object_path FROM notifications")
	if err != nil {
		return nil, fmt.Errorf("listing object paths: %w", err)
	}
	return paths, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any outstanding
// migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}
