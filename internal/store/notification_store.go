package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gyaneshwarpardhi/notifyhub/internal/notification"
)

type notificationRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Type           string         `db:"type"`
	Title          string         `db:"title"`
	Content        string         `db:"content"`
	Severity       string         `db:"severity"`
	Timestamp      time.Time      `db:"timestamp"`
	IsRead         bool           `db:"is_read"`
	ObjectPath     string         `db:"object_path"`
	ActionURL      string         `db:"action_url"`
	SubscriptionID sql.NullString `db:"subscription_id"`
	Inherited      bool           `db:"inherited"`
	ExtraData      sql.NullString `db:"extra_data"`
}

func (r *notificationRow) toModel() (*notification.Notification, error) {
	n := &notification.Notification{
		ID:         r.ID,
		UserID:     r.UserID,
		Type:       r.Type,
		Title:      r.Title,
		Content:    r.Content,
		Severity:   notification.Severity(r.Severity),
		Timestamp:  r.Timestamp,
		IsRead:     r.IsRead,
		ObjectPath: r.ObjectPath,
		ActionURL:  r.ActionURL,
		Inherited:  r.Inherited,
	}
	if r.SubscriptionID.Valid {
		id := r.SubscriptionID.String
		n.SubscriptionID = &id
	}
	if r.ExtraData.Valid && r.ExtraData.String != "" {
		if err := json.Unmarshal([]byte(r.ExtraData.String), &n.ExtraData); err != nil {
			return nil, fmt.Errorf("decoding extra_data for %s: %w", r.ID, err)
		}
	}
	return n, nil
}

// Create inserts a new notification record. Always a create, never an
// upsert.
func (s *NotificationStore) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	extra, err := jsonColumn(n.ExtraData, len(n.ExtraData) == 0)
	if err != nil {
		return fmt.Errorf("encoding extra_data: %w", err)
	}
	var subID sql.NullString
	if n.SubscriptionID != nil {
		subID = sql.NullString{String: *n.SubscriptionID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, user_id, type, title, content, severity, timestamp,
			is_read, object_path, action_url, subscription_id, inherited, extra_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Content, string(n.Severity), n.Timestamp,
		n.IsRead, n.ObjectPath, n.ActionURL, subID, n.Inherited, extra,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// filterClauses translates a Filter into WHERE fragments and bind args.
func filterClauses(f notification.Filter) ([]string, []any) {
	var where []string
	var args []any
	if f.Path != "" {
		where = append(where, "object_path = ?")
		args = append(args, f.Path)
	}
	if f.EventType != "" {
		where = append(where, "type = ?")
		args = append(args, f.EventType)
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, f.Severity)
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.To)
	}
	if f.IsRead != nil {
		where = append(where, "is_read = ?")
		args = append(args, *f.IsRead)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	return where, args
}

func (s *NotificationStore) selectNotifications(ctx context.Context, where []string, args []any, limit, offset int) ([]notification.Notification, error) {
	query := "SELECT * FROM notifications"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	out := make([]notification.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

// FindByUser lists a user's notifications, newest first.
func (s *NotificationStore) FindByUser(ctx context.Context, userID string, f notification.Filter, limit, offset int) ([]notification.Notification, error) {
	where, args := filterClauses(f)
	where = append([]string{"user_id = ?"}, where...)
	args = append([]any{userID}, args...)
	return s.selectNotifications(ctx, where, args, limit, offset)
}

// FindAll lists every notification in the system, newest first. Serves the
// system log view; no recipient scoping.
func (s *NotificationStore) FindAll(ctx context.Context, f notification.Filter, limit, offset int) ([]notification.Notification, error) {
	where, args := filterClauses(f)
	return s.selectNotifications(ctx, where, args, limit, offset)
}

// MarkRead flips the read flag on one of the user's notifications. The flag
// only ever goes from unread to read.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notification.ErrNotFound
	}
	return nil
}

// BulkMarkRead marks the given notifications read, scoped to the user, and
// reports how many rows changed.
func (s *NotificationStore) BulkMarkRead(ctx context.Context, ids []string, userID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return 0, fmt.Errorf("building bulk read query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk marking notifications read: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}
