package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirethread/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_staff      BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	parent_id   INTEGER REFERENCES messages(id) ON DELETE SET NULL,
	body        TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	edited      BOOLEAN NOT NULL DEFAULT 0,
	edited_at   DATETIME,
	unread      BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	message_id INTEGER REFERENCES messages(id) ON DELETE SET NULL,
	detail     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS message_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	editor_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	old_body   TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_id);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, unread, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read, created_at);
CREATE INDEX IF NOT EXISTS idx_history_message ON message_history(message_id, created_at);
`

const messageColumns = `id, sender_id, receiver_id, parent_id, body, created_at, edited, edited_at, unread`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db    *sql.DB
	hooks store.MessageHooks
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also serialises
	// the read-compare-write sequence of message updates.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetHooks registers message lifecycle callbacks.
func (s *SQLiteStore) SetHooks(hooks store.MessageHooks) {
	s.hooks = hooks
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var parentID sql.NullInt64
	var editedAt sql.NullTime
	if err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&parentID,
		&msg.Body,
		&msg.CreatedAt,
		&msg.Edited,
		&editedAt,
		&msg.Unread,
	); err != nil {
		return nil, err
	}
	if parentID.Valid {
		msg.ParentID = &parentID.Int64
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	return &msg, nil
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_staff, created_at)
		VALUES (?, ?, 0, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_staff, created_at
		FROM users
		WHERE id = ?
	`
	return s.queryUser(ctx, query, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_staff, created_at
		FROM users
		WHERE username = ?
	`
	return s.queryUser(ctx, query, username)
}

func (s *SQLiteStore) queryUser(ctx context.Context, query string, arg any) (*store.User, error) {
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsStaff,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SearchUsers finds users whose username contains query, ordered by username.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_staff, created_at
		FROM users
		WHERE username LIKE ? ESCAPE '\'
		ORDER BY username
		LIMIT 20
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SetStaff grants or revokes elevated visibility.
func (s *SQLiteStore) SetStaff(ctx context.Context, username string, staff bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_staff = ? WHERE username = ?`, staff, username)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(result, fmt.Sprintf("user %s", username))
}

// DeleteUser removes a user. Foreign keys cascade to their messages and notifications.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(result, fmt.Sprintf("user %d", id))
}

func expectAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and fires the Created hook after commit.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Unread = true

	query := `
		INSERT INTO messages (sender_id, receiver_id, parent_id, body, created_at, edited, unread)
		VALUES (?, ?, ?, ?, ?, 0, 1)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.ParentID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	if s.hooks.Created != nil {
		s.hooks.Created(ctx, msg.Clone())
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	return getMessage(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMessage(ctx context.Context, q queryRower, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListThreadMessages returns the root and all of its transitive replies.
func (s *SQLiteStore) ListThreadMessages(ctx context.Context, rootID int64) ([]*store.Message, error) {
	// UNION (not UNION ALL) stops the walk if a corrupt cycle ever exists.
	query := `
		WITH RECURSIVE thread(id) AS (
			SELECT id FROM messages WHERE id = ?
			UNION
			SELECT m.id FROM messages m JOIN thread t ON m.parent_id = t.id
		)
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id IN (SELECT id FROM thread)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	return scanMessages(rows)
}

// ListUnread returns unread messages addressed to receiverID, newest first.
func (s *SQLiteStore) ListUnread(ctx context.Context, receiverID int64) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver_id = ? AND unread = 1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	return scanMessages(rows)
}

// CountUnread counts unread messages addressed to receiverID.
func (s *SQLiteStore) CountUnread(ctx context.Context, receiverID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND unread = 1`, receiverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// ListMessages lists messages newest first with cursor pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID *int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1 = 1`
	var args []any

	if userID != nil {
		query += ` AND (sender_id = ? OR receiver_id = ?)`
		args = append(args, *userID, *userID)
	}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return scanMessages(rows)
}

// UpdateMessageBody replaces a message body. The previous row is loaded inside the
// transaction and handed to the Updating hook, whose history entry (if any) is written
// atomically with the new body.
func (s *SQLiteStore) UpdateMessageBody(ctx context.Context, id int64, body string) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // Rollback is called on defer, error is not critical here
	}()

	old, err := getMessage(ctx, tx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var updated *store.Message
	if old != nil {
		updated = old.Clone()
	} else {
		updated = &store.Message{ID: id}
	}
	updated.Body = body

	if s.hooks.Updating != nil {
		entry, logEdit := s.hooks.Updating(ctx, old, updated)
		if logEdit && entry != nil {
			if err := insertHistory(ctx, tx, entry); err != nil {
				return nil, err
			}
			editedAt := entry.CreatedAt
			updated.Edited = true
			updated.EditedAt = &editedAt
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE messages SET body = ?, edited = ?, edited_at = ? WHERE id = ?`,
		updated.Body, updated.Edited, updated.EditedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if err := expectAffected(result, fmt.Sprintf("message %d", id)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return updated, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry *store.MessageHistory) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO message_history (message_id, editor_id, old_body, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.MessageID, entry.EditorID, entry.OldBody, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// MarkRead flips unread to false if the message is still unread.
func (s *SQLiteStore) MarkRead(ctx context.Context, id int64) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET unread = 0 WHERE id = ? AND unread = 1`, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if err := expectAffected(result, fmt.Sprintf("unread message %d", id)); err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes a message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return expectAffected(result, fmt.Sprintf("message %d", id))
}

// ==== NotificationStore implementation ====

// CreateNotification persists a notification.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *store.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, message_id, detail, created_at, is_read)
		VALUES (?, ?, ?, ?, ?)
	`, n.UserID, n.MessageID, n.Detail, n.CreatedAt, n.IsRead)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

func scanNotification(row rowScanner) (*store.Notification, error) {
	var n store.Notification
	var messageID sql.NullInt64
	if err := row.Scan(&n.ID, &n.UserID, &messageID, &n.Detail, &n.CreatedAt, &n.IsRead); err != nil {
		return nil, err
	}
	if messageID.Valid {
		n.MessageID = &messageID.Int64
	}
	return &n, nil
}

// ListNotifications lists a user's notifications newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*store.Notification, error) {
	query := `
		SELECT id, user_id, message_id, detail, created_at, is_read
		FROM notifications
		WHERE user_id = ?
	`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*store.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks a notification owned by userID as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, userID int64) (*store.Notification, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if err := expectAffected(result, fmt.Sprintf("notification %d", id)); err != nil {
		return nil, err
	}

	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, message_id, detail, created_at, is_read
		FROM notifications
		WHERE id = ?
	`, id))
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return n, nil
}

// ==== HistoryStore implementation ====

// ListHistory lists the edit history of a message newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, messageID int64) ([]*store.MessageHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, editor_id, old_body, created_at
		FROM message_history
		WHERE message_id = ?
		ORDER BY created_at DESC, id DESC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []*store.MessageHistory
	for rows.Next() {
		var h store.MessageHistory
		if err := rows.Scan(&h.ID, &h.MessageID, &h.EditorID, &h.OldBody, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}
