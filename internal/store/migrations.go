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

CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	source_account    TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	notification_type TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	body              TEXT NOT NULL DEFAULT '',
	sender_name       TEXT NOT NULL DEFAULT '',
	sender_avatar     TEXT NOT NULL DEFAULT '',
	timestamp         DATETIME NOT NULL,
	priority          TEXT NOT NULL DEFAULT 'normal',
	triage_status     TEXT NOT NULL DEFAULT 'unread',
	is_actionable     INTEGER NOT NULL DEFAULT 1,
	thread_id         TEXT NOT NULL DEFAULT '',
	channel_name      TEXT NOT NULL DEFAULT '',
	project_name      TEXT NOT NULL DEFAULT '',
	snoozed_until     DATETIME,
	raw_payload       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

	UNIQUE(source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_status
	ON notifications(triage_status);
CREATE INDEX IF NOT EXISTS idx_notifications_timestamp
	ON notifications(timestamp);
CREATE INDEX IF NOT EXISTS idx_notifications_source
	ON notifications(source);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_status_timestamp
	ON notifications(triage_status, timestamp);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
