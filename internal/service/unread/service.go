package unread

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Service answers unread queries and acknowledges messages.
type Service struct {
	store  store.MessageStore
	events core.Publisher
	log    *zerolog.Logger
}

// New creates a new unread service. events may be nil, in which case no read
// receipts are pushed.
func New(st store.MessageStore, events core.Publisher, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, events: events, log: logger}
}

// ListUnread returns unread messages addressed to receiverID, newest first,
// restricted to those vis allows.
func (s *Service) ListUnread(ctx context.Context, receiverID int64, vis core.Visibility) ([]*store.Message, error) {
	msgs, err := s.store.ListUnread(ctx, receiverID)
	if err != nil {
		return nil, core.StoreFailure("list unread", err)
	}
	if vis == nil {
		return msgs, nil
	}
	return vis.Filter(msgs), nil
}

// CountUnread counts unread messages addressed to receiverID.
func (s *Service) CountUnread(ctx context.Context, receiverID int64) (int, error) {
	n, err := s.store.CountUnread(ctx, receiverID)
	if err != nil {
		return 0, core.StoreFailure("count unread", err)
	}
	return n, nil
}

// MarkRead acknowledges a message on behalf of its receiver.
// A message that is already read is reported as not found.
func (s *Service) MarkRead(ctx context.Context, actor core.Actor, messageID int64) (*store.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, core.StoreFailure("get message", err)
	}
	if !core.VisibleTo(actor)(msg) {
		return nil, core.NotFound("message not found")
	}
	if msg.ReceiverID != actor.UserID {
		return nil, core.PermissionDenied("only the receiver can mark a message as read")
	}

	updated, err := s.store.MarkRead(ctx, messageID)
	if err != nil {
		return nil, core.StoreFailure("mark read", err)
	}
	metrics.MessagesRead.Inc()

	if s.events != nil && updated.SenderID != updated.ReceiverID {
		if !s.events.Publish(updated.SenderID, &core.Event{Kind: core.EventMessageRead, Message: updated.Clone()}) {
			metrics.PushDropped.Inc()
		}
	}

	s.log.Debug().Int64("message_id", messageID).Int64("receiver_id", actor.UserID).Msg("message marked read")
	return updated, nil
}
