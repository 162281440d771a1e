package notify

import (
	"context"

	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Service lists and acknowledges notifications.
type Service struct {
	store Store
}

// New creates a new notification service.
func New(st Store) *Service {
	return &Service{store: st}
}

// List returns the actor's notifications, newest first.
func (s *Service) List(ctx context.Context, actor core.Actor, unreadOnly bool) ([]*store.Notification, error) {
	items, err := s.store.ListNotifications(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return nil, core.StoreFailure("list notifications", err)
	}
	return items, nil
}

// MarkRead marks a notification owned by actor as read. Notifications of other
// users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, actor core.Actor, id int64) (*store.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, actor.UserID)
	if err != nil {
		return nil, core.StoreFailure("mark notification read", err)
	}
	return n, nil
}
