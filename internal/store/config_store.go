package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/notifyhub/internal/config"
	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
)

// SeverityLevel is a configured severity with its display attributes.
type SeverityLevel struct {
	ID             string    `db:"id" json:"id"`
	Label          string    `db:"label" json:"label"`
	Description    string    `db:"description" json:"description"`
	BootstrapClass string    `db:"bootstrap_class" json:"bootstrap_class"`
	Priority       int       `db:"priority" json:"priority"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EventTypeRecord is a configured event type and its default severity.
type EventTypeRecord struct {
	ID                string         `db:"id" json:"id"`
	Label             string         `db:"label" json:"label"`
	Description       string         `db:"description" json:"description"`
	DefaultSeverityID sql.NullString `db:"default_severity_id" json:"-"`
	IsActive          bool           `db:"is_active" json:"is_active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`

	// DefaultSeverity mirrors DefaultSeverityID for JSON responses.
	DefaultSeverity string `db:"-" json:"default_severity"`
}

// SeverityForEventType returns the default severity configured for an active
// event type, or notification.ErrNotFound for unknown or unmapped types.
func (s *ConfigStore) SeverityForEventType(ctx context.Context, eventType string) (notification.Severity, error) {
	var sev sql.NullString
	err := s.db.GetContext(ctx, &sev,
		"SELECT default_severity_id FROM event_types WHERE id = ? AND is_active = 1", eventType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notification.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up severity for %s: %w", eventType, err)
	}
	if !sev.Valid || sev.String == "" {
		return "", notification.ErrNotFound
	}
	return notification.Severity(sev.String), nil
}

// ListSeverityLevels returns all active severity levels ordered by priority.
func (s *ConfigStore) ListSeverityLevels(ctx context.Context) ([]SeverityLevel, error) {
	var levels []SeverityLevel
	err := s.db.SelectContext(ctx, &levels,
		"SELECT * FROM severity_levels WHERE is_active = 1 ORDER BY priority")
	if err != nil {
		return nil, fmt.Errorf("listing severity levels: %w", err)
	}
	return levels, nil
}

// ListEventTypes returns all active event types ordered by label.
func (s *ConfigStore) ListEventTypes(ctx context.Context) ([]EventTypeRecord, error) {
	var types []EventTypeRecord
	err := s.db.SelectContext(ctx, &types,
		"SELECT id, label, description, default_severity_id, is_active, created_at FROM event_types WHERE is_active = 1 ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("listing event types: %w", err)
	}
	for i := range types {
		if types[i].DefaultSeverityID.Valid {
			types[i].DefaultSeverity = types[i].DefaultSeverityID.String
		}
	}
	return types, nil
}

// Seed upserts the configured severity levels and event types. Called at
// startup and again on every config hot-reload; rows edited directly in the
// table keep their values until the next seed touches them.
func (s *ConfigStore) Seed(ctx context.Context, severities []config.SeverityConf, eventTypes []config.EventTypeConf) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning configuration seed: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, sv := range severities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO severity_levels (id, label, description, bootstrap_class, priority, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT (id) DO UPDATE SET
				label = excluded.label,
				description = excluded.description,
				bootstrap_class = excluded.bootstrap_class,
				priority = excluded.priority,
				is_active = 1`,
			sv.ID, sv.Label, sv.Description, sv.BootstrapClass, sv.Priority, now,
		)
		if err != nil {
			return fmt.Errorf("seeding severity %s: %w", sv.ID, err)
		}
	}
	for _, et := range eventTypes {
		var sev sql.NullString
		if et.Severity != "" {
			sev = sql.NullString{String: et.Severity, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_types (id, label, description, default_severity_id, is_active, created_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (id) DO UPDATE SET
				label = excluded.label,
				description = excluded.description,
				default_severity_id = excluded.default_severity_id,
				is_active = 1`,
			et.ID, et.Label, et.Description, sev, now,
		)
		if err != nil {
			return fmt.Errorf("seeding event type %s: %w", et.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing configuration seed: %w", err)
	}
	return nil
}
