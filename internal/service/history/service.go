package history

import (
	"context"

	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Store is the part of the store the history listing needs.
type Store interface {
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	ListHistory(ctx context.Context, messageID int64) ([]*store.MessageHistory, error)
}

// Service exposes the edit log of messages.
type Service struct {
	store Store
}

// New creates a new history service.
func New(st Store) *Service {
	return &Service{store: st}
}

// List returns the previous bodies of a message visible to actor, newest first.
func (s *Service) List(ctx context.Context, actor core.Actor, messageID int64) ([]*store.MessageHistory, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, core.StoreFailure("get message", err)
	}
	if !core.VisibleTo(actor)(msg) {
		return nil, core.NotFound("message not found")
	}

	entries, err := s.store.ListHistory(ctx, messageID)
	if err != nil {
		return nil, core.StoreFailure("list history", err)
	}
	return entries, nil
}
