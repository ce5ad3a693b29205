package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gyaneshwarpardhi/notifyhub/internal/subscription"
)

// subscriptionRow is the database shape of a subscription; the JSON columns
// are stored as TEXT.
type subscriptionRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	Path              string         `db:"path"`
	IncludeChildren   bool           `db:"include_children"`
	NotificationTypes sql.NullString `db:"notification_types"`
	Settings          sql.NullString `db:"settings"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r *subscriptionRow) toModel() (*subscription.Subscription, error) {
	sub := &subscription.Subscription{
		ID:              r.ID,
		UserID:          r.UserID,
		Path:            r.Path,
		IncludeChildren: r.IncludeChildren,
		CreatedAt:       r.CreatedAt,
	}
	if r.NotificationTypes.Valid && r.NotificationTypes.String != "" {
		if err := json.Unmarshal([]byte(r.NotificationTypes.String), &sub.NotificationTypes); err != nil {
			return nil, fmt.Errorf("decoding notification_types for %s: %w", r.ID, err)
		}
	}
	if r.Settings.Valid && r.Settings.String != "" {
		if err := json.Unmarshal([]byte(r.Settings.String), &sub.Settings); err != nil {
			return nil, fmt.Errorf("decoding settings for %s: %w", r.ID, err)
		}
	}
	return sub, nil
}

func jsonColumn(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func rowsToModels(rows []subscriptionRow) ([]subscription.Subscription, error) {
	subs := make([]subscription.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// FindByID returns a subscription by its identifier.
func (s *SubscriptionStore) FindByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM subscriptions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding subscription %s: %w", id, err)
	}
	return row.toModel()
}

// FindByUserAndPath returns the single subscription a user holds on a path.
func (s *SubscriptionStore) FindByUserAndPath(ctx context.Context, userID, path string) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM subscriptions WHERE user_id = ? AND path = ?", userID, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding subscription for %s on %s: %w", userID, path, err)
	}
	return row.toModel()
}

// FindByUser lists a user's subscriptions ordered by path, optionally
// restricted to a path prefix.
func (s *SubscriptionStore) FindByUser(ctx context.Context, userID, pathPrefix string) ([]subscription.Subscription, error) {
	var rows []subscriptionRow
	var err error
	if pathPrefix != "" {
		err = s.db.SelectContext(ctx, &rows,
			"SELECT * FROM subscriptions WHERE user_id = ? AND path LIKE ? ORDER BY path",
			userID, pathPrefix+"%")
	} else {
		err = s.db.SelectContext(ctx, &rows,
			"SELECT * FROM subscriptions WHERE user_id = ? ORDER BY path", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions for %s: %w", userID, err)
	}
	return rowsToModels(rows)
}

// FindByPath returns every subscription sitting exactly on path.
func (s *SubscriptionStore) FindByPath(ctx context.Context, path string) ([]subscription.Subscription, error) {
	var rows []subscriptionRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM subscriptions WHERE path = ?", path)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions on %s: %w", path, err)
	}
	return rowsToModels(rows)
}

// FindByPathsWithChildren returns subscriptions on any of the given paths
// that are marked to include descendants.
func (s *SubscriptionStore) FindByPathsWithChildren(ctx context.Context, paths []string) ([]subscription.Subscription, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT * FROM subscriptions WHERE path IN (?) AND include_children = 1", paths)
	if err != nil {
		return nil, fmt.Errorf("building ancestor query: %w", err)
	}
	var rows []subscriptionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing ancestor subscriptions: %w", err)
	}
	return rowsToModels(rows)
}

// Create inserts a new subscription. Generates a UUID and timestamp when
// absent. The (user_id, path) pair is unique; callers upsert through the
// service layer by updating the existing row instead.
func (s *SubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	types, err := jsonColumn(sub.NotificationTypes, len(sub.NotificationTypes) == 0)
	if err != nil {
		return fmt.Errorf("encoding notification_types: %w", err)
	}
	settings, err := jsonColumn(sub.Settings, len(sub.Settings) == 0)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, path, include_children,
			notification_types, settings, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.Path, sub.IncludeChildren,
		types, settings, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}
	return nil
}

// Update rewrites a subscription's mutable fields in place.
func (s *SubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	types, err := jsonColumn(sub.NotificationTypes, len(sub.NotificationTypes) == 0)
	if err != nil {
		return fmt.Errorf("encoding notification_types: %w", err)
	}
	settings, err := jsonColumn(sub.Settings, len(sub.Settings) == 0)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			include_children = ?, notification_types = ?, settings = ?
		WHERE id = ?`,
		sub.IncludeChildren, types, settings, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("updating subscription %s: %w", sub.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// Delete removes a subscription. Notifications it produced stay behind with
// their subscription reference cleared; they are never cascade-deleted.
func (s *SubscriptionStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning subscription delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE notifications SET subscription_id = NULL WHERE subscription_id = ?", id); err != nil {
		return fmt.Errorf("clearing notification references for %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting subscription %s: %w", id, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return subscription.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing subscription delete: %w", err)
	}
	return nil
}
