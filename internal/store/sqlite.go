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
	_ "modernc.org/sqlite"

	"github.com/nhle/command-center/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
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
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Upsert inserts a notification or refreshes the existing row sharing its
// (source, source_id). A refresh overwrites content fields only; the row's
// id, triage_status, and snoozed_until survive re-observation untouched.
func (s *SQLiteStore) Upsert(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	rawPayload := ""
	if n.RawPayload != nil {
		data, err := json.Marshal(n.RawPayload)
		if err != nil {
			return fmt.Errorf("marshaling raw_payload for %s: %w", n.SourceID, err)
		}
		rawPayload = string(data)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.GetContext(ctx, &existingID,
		"SELECT id FROM notifications WHERE source = ? AND source_id = ?",
		string(n.Source), n.SourceID,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (
				id, source, source_account, source_id,
				notification_type, title, body, sender_name, sender_avatar,
				timestamp, priority, triage_status, is_actionable,
				thread_id, channel_name, project_name, raw_payload
			) VALUES (
				?, ?, ?, ?,
				?, ?, ?, ?, ?,
				?, ?, ?, ?,
				?, ?, ?, ?
			)`,
			n.ID, string(n.Source), n.SourceAccount, n.SourceID,
			string(n.Type), n.Title, n.Body, n.SenderName, n.SenderAvatar,
			n.Timestamp.UTC(), string(n.Priority), string(model.StatusUnread),
			boolToInt(n.Actionable),
			n.ThreadID, n.ChannelName, n.ProjectName, rawPayload,
		)
		if err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.SourceID, err)
		}
	case err != nil:
		return fmt.Errorf("looking up notification %s: %w", n.SourceID, err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE notifications SET
				title = ?, body = ?, timestamp = ?, priority = ?,
				sender_name = ?, sender_avatar = ?,
				thread_id = ?, channel_name = ?, project_name = ?,
				raw_payload = ?
			WHERE id = ?`,
			n.Title, n.Body, n.Timestamp.UTC(), string(n.Priority),
			n.SenderName, n.SenderAvatar,
			n.ThreadID, n.ChannelName, n.ProjectName,
			rawPayload, existingID,
		)
		if err != nil {
			return fmt.Errorf("refreshing notification %s: %w", n.SourceID, err)
		}
	}

	return tx.Commit()
}

// SetStatus applies a triage transition. Unknown ids return (false, nil).
// Archived is terminal: the only transition accepted from archived is the
// idempotent re-archive.
func (s *SQLiteStore) SetStatus(
	ctx context.Context,
	id string,
	status model.TriageStatus,
	snoozedUntil *time.Time,
) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.GetContext(ctx, &current,
		"SELECT triage_status FROM notifications WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up notification %s: %w", id, err)
	}

	from := model.TriageStatus(current)
	if err := validateTransition(from, status, snoozedUntil); err != nil {
		return false, err
	}

	var until sql.NullTime
	if status == model.StatusSnoozed {
		until = sql.NullTime{Time: snoozedUntil.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE notifications SET triage_status = ?, snoozed_until = ? WHERE id = ?",
		string(status), until, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating status for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing status change: %w", err)
	}
	return true, nil
}

// validateTransition enforces the triage state machine: anything can be
// archived or marked read/actioned, only unread/read can be snoozed, and
// nothing leaves archived through this path.
func validateTransition(
	from, to model.TriageStatus,
	snoozedUntil *time.Time,
) error {
	if from == model.StatusArchived && to != model.StatusArchived {
		return &InvalidTransitionError{From: from, To: to}
	}

	switch to {
	case model.StatusArchived, model.StatusRead, model.StatusActioned:
		return nil
	case model.StatusSnoozed:
		if from != model.StatusUnread && from != model.StatusRead {
			return &InvalidTransitionError{From: from, To: to}
		}
		if snoozedUntil == nil {
			return fmt.Errorf("snooze transition requires a deadline")
		}
		return nil
	default:
		return &InvalidTransitionError{From: from, To: to}
	}
}

// List returns notifications ordered newest first. Expired snoozes are
// flipped back to unread in the same call, so a snoozed item reappears on
// the first listing after its deadline without any background timer.
func (s *SQLiteStore) List(
	ctx context.Context,
	opts ListOptions,
) ([]model.Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Lazy snooze expiry: wake anything whose deadline has passed.
	_, err = tx.ExecContext(ctx, `
		UPDATE notifications
		SET triage_status = ?, snoozed_until = NULL
		WHERE triage_status = ? AND snoozed_until <= ?`,
		string(model.StatusUnread), string(model.StatusSnoozed),
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("expiring snoozes: %w", err)
	}

	query := "SELECT * FROM notifications WHERE triage_status != ?"
	args := []interface{}{string(model.StatusArchived)}
	if opts.Status != nil {
		query = "SELECT * FROM notifications WHERE triage_status = ?"
		args = []interface{}{string(*opts.Status)}
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing snooze expiry: %w", err)
	}
	return notifications, nil
}

// GetByID retrieves a single notification, returning (nil, nil) when the
// id is unknown.
func (s *SQLiteStore) GetByID(
	ctx context.Context,
	id string,
) (*model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM notifications WHERE id = ?", id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notification %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	n, err := scanNotification(rows)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n            model.Notification
		source       string
		ntype        string
		priority     string
		status       string
		actionable   int
		timestamp    time.Time
		snoozedUntil sql.NullTime
		rawPayload   string
		createdAt    time.Time
	)

	err := rows.Scan(
		&n.ID, &source, &n.SourceAccount, &n.SourceID,
		&ntype, &n.Title, &n.Body, &n.SenderName, &n.SenderAvatar,
		&timestamp, &priority, &status, &actionable,
		&n.ThreadID, &n.ChannelName, &n.ProjectName,
		&snoozedUntil, &rawPayload, &createdAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Source = model.Source(source)
	n.Type = model.NotificationType(ntype)
	n.Priority = model.Priority(priority)
	n.Status = model.TriageStatus(status)
	n.Actionable = actionable != 0
	n.Timestamp = timestamp

	if snoozedUntil.Valid {
		t := snoozedUntil.Time
		n.SnoozedUntil = &t
	}

	if rawPayload != "" {
		if err := json.Unmarshal([]byte(rawPayload), &n.RawPayload); err != nil {
			return model.Notification{}, fmt.Errorf("unmarshaling raw_payload: %w", err)
		}
	}

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
