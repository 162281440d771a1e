package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Store is the part of the store the notification side needs.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	CreateNotification(ctx context.Context, n *store.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*store.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) (*store.Notification, error)
}

// Dispatcher creates a notification for the receiver of every new message.
type Dispatcher struct {
	store  Store
	events core.Publisher
	log    *zerolog.Logger
}

// NewDispatcher creates a new dispatcher. events may be nil.
func NewDispatcher(st Store, events core.Publisher, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{store: st, events: events, log: logger}
}

// OnMessageCreated records exactly one notification for msg's receiver and pushes
// it to their live sessions. Failures are logged; message creation never sees them.
func (d *Dispatcher) OnMessageCreated(ctx context.Context, msg *store.Message) {
	sender := fmt.Sprintf("user #%d", msg.SenderID)
	if u, err := d.store.GetUserByID(ctx, msg.SenderID); err == nil {
		sender = u.Username
	} else {
		d.log.Warn().Err(err).Int64("sender_id", msg.SenderID).Msg("sender lookup failed")
	}

	messageID := msg.ID
	n := &store.Notification{
		UserID:    msg.ReceiverID,
		MessageID: &messageID,
		Detail:    fmt.Sprintf("You have a new message from %s!", sender),
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
		d.log.Error().
			Err(err).
			Int64("message_id", msg.ID).
			Int64("receiver_id", msg.ReceiverID).
			Msg("failed to create notification")
		return
	}
	metrics.NotificationsDispatched.WithLabelValues("created").Inc()

	if d.events == nil {
		return
	}
	if !d.events.Publish(n.UserID, &core.Event{Kind: core.EventNotification, Notification: n}) {
		metrics.PushDropped.Inc()
		d.log.Debug().Int64("notification_id", n.ID).Msg("notification push dropped")
	}
}
