package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	path               TEXT NOT NULL,
	include_children   INTEGER NOT NULL DEFAULT 1,
	notification_types TEXT,
	settings           TEXT,
	created_at         DATETIME NOT NULL,
	UNIQUE (user_id, path)
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_path ON subscriptions(path);

CREATE TABLE IF NOT EXISTS severity_levels (
	id              TEXT PRIMARY KEY,
	label           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	bootstrap_class TEXT NOT NULL DEFAULT 'info',
	priority        INTEGER NOT NULL DEFAULT 0,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS event_types (
	id                  TEXT PRIMARY KEY,
	label               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	default_severity_id TEXT REFERENCES severity_levels(id),
	is_active           INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	type            TEXT NOT NULL,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	severity        TEXT NOT NULL,
	timestamp       DATETIME NOT NULL,
	is_read         INTEGER NOT NULL DEFAULT 0,
	object_path     TEXT NOT NULL,
	action_url      TEXT NOT NULL DEFAULT '',
	subscription_id TEXT REFERENCES subscriptions(id),
	inherited       INTEGER NOT NULL DEFAULT 0,
	extra_data      TEXT
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_type ON notifications(type);
CREATE INDEX IF NOT EXISTS idx_notifications_severity ON notifications(severity);
CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications(timestamp);
CREATE INDEX IF NOT EXISTS idx_notifications_is_read ON notifications(is_read);
CREATE INDEX IF NOT EXISTS idx_notifications_object_path ON notifications(object_path);
`,
	},
}
