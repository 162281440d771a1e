package core

import "github.com/vovakirdan/wirethread/internal/store"

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserID     int64
	Privileged bool
}

// Visibility decides whether a message may be read by some actor.
type Visibility func(msg *store.Message) bool

// Everything is the visibility of privileged actors.
func Everything() Visibility {
	return func(*store.Message) bool { return true }
}

// OwnTraffic allows messages the user sent or received.
func OwnTraffic(userID int64) Visibility {
	return func(msg *store.Message) bool {
		return msg.SenderID == userID || msg.ReceiverID == userID
	}
}

// VisibleTo returns the visibility rule for actor.
func VisibleTo(actor Actor) Visibility {
	if actor.Privileged {
		return Everything()
	}
	return OwnTraffic(actor.UserID)
}

// Filter keeps the messages vis allows, preserving order.
func (vis Visibility) Filter(messages []*store.Message) []*store.Message {
	out := make([]*store.Message, 0, len(messages))
	for _, msg := range messages {
		if vis(msg) {
			out = append(out, msg)
		}
	}
	return out
}
