package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) when a lookup or conditional update matches no row.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}

// Message represents a persisted direct message.
// ParentID links a reply to the message it answers.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	ParentID   *int64
	Body       string
	CreatedAt  time.Time
	Edited     bool
	EditedAt   *time.Time
	Unread     bool
}

// Clone returns a copy that shares no pointers with m.
func (m *Message) Clone() *Message {
	c := *m
	if m.ParentID != nil {
		parent := *m.ParentID
		c.ParentID = &parent
	}
	if m.EditedAt != nil {
		editedAt := *m.EditedAt
		c.EditedAt = &editedAt
	}
	return &c
}

// Notification is created for the receiver of every new message.
type Notification struct {
	ID        int64
	UserID    int64
	MessageID *int64 // nil once the message is deleted
	Detail    string
	CreatedAt time.Time
	IsRead    bool
}

// MessageHistory snapshots the body a message had before an edit.
type MessageHistory struct {
	ID        int64
	MessageID int64
	EditorID  int64
	OldBody   string
	CreatedAt time.Time
}

// MessageHooks are called by the store at fixed points of a message's lifecycle.
type MessageHooks struct {
	// Created runs after a new message has been committed.
	Created func(ctx context.Context, msg *Message)

	// Updating runs inside the update transaction before the new body is written.
	// old is nil when the stored row could not be loaded. When it returns true the
	// entry is inserted in the same transaction and the message is marked edited.
	// Implementations must not call back into the store.
	Updating func(ctx context.Context, old, updated *Message) (*MessageHistory, bool)
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers finds users whose username contains query.
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// SetStaff grants or revokes elevated visibility.
	SetStaff(ctx context.Context, username string, staff bool) error

	// DeleteUser removes a user together with their messages and notifications.
	DeleteUser(ctx context.Context, id int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SetHooks registers lifecycle callbacks. It is meant to be called once during wiring.
	SetHooks(hooks MessageHooks)

	// CreateMessage inserts msg, filling ID and CreatedAt, then fires the Created hook.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListThreadMessages returns the root and every message whose parent chain leads to it,
	// ordered by creation time.
	ListThreadMessages(ctx context.Context, rootID int64) ([]*Message, error)

	// ListUnread returns unread messages addressed to receiverID, newest first.
	ListUnread(ctx context.Context, receiverID int64) ([]*Message, error)

	// CountUnread counts unread messages addressed to receiverID.
	CountUnread(ctx context.Context, receiverID int64) (int, error)

	// ListMessages lists messages newest first. When userID is nil every message is
	// eligible, otherwise only those sent or received by the user.
	// If beforeID is provided, returns messages older than that ID.
	ListMessages(ctx context.Context, userID *int64, limit int, beforeID *int64) ([]*Message, error)

	// UpdateMessageBody replaces the body inside a transaction that runs the Updating hook.
	UpdateMessageBody(ctx context.Context, id int64, body string) (*Message, error)

	// MarkRead flips unread to false if the message is still unread.
	// Returns ErrNotFound when no unread message with that ID exists.
	MarkRead(ctx context.Context, id int64) (*Message, error)

	// DeleteMessage removes a message; replies are detached and notifications unlinked.
	DeleteMessage(ctx context.Context, id int64) error
}

// NotificationStore handles notification persistence.
type NotificationStore interface {
	// CreateNotification persists a notification, filling ID and CreatedAt.
	CreateNotification(ctx context.Context, n *Notification) error

	// ListNotifications lists a user's notifications newest first.
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error)

	// MarkNotificationRead marks a notification owned by userID as read.
	MarkNotificationRead(ctx context.Context, id, userID int64) (*Notification, error)
}

// HistoryStore exposes the append-only edit log. Entries are written by UpdateMessageBody.
type HistoryStore interface {
	// ListHistory lists the history of a message newest first.
	ListHistory(ctx context.Context, messageID int64) ([]*MessageHistory, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	NotificationStore
	HistoryStore

	// Close closes the underlying database connection.
	Close() error
}
