package core

import "github.com/vovakirdan/wirethread/internal/store"

// EventKind is a notification the core pushes to connected clients.
type EventKind int

const (
	// EventNotification delivers a freshly created notification to its owner.
	EventNotification EventKind = iota
	// EventMessageRead tells the sender that the receiver has read a message.
	EventMessageRead
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	Notification *store.Notification // EventNotification
	Message      *store.Message      // EventMessageRead
}
