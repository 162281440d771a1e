package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/store"
)

const (
	// DefaultMaxBodyLength bounds message bodies when no limit is configured.
	DefaultMaxBodyLength = 4000

	defaultPageSize = 50
	maxPageSize     = 100
)

// CreateInput describes a new message. The sender is always the acting user.
type CreateInput struct {
	ReceiverID int64
	ParentID   *int64
	Body       string
}

// Service implements the message lifecycle: create, read, edit and delete.
type Service struct {
	store         store.Store
	locks         *keyedMutex
	log           *zerolog.Logger
	maxBodyLength int
}

// New creates a new message service.
func New(st store.Store, logger *zerolog.Logger, maxBodyLength int) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if maxBodyLength <= 0 {
		maxBodyLength = DefaultMaxBodyLength
	}
	return &Service{
		store:         st,
		locks:         newKeyedMutex(),
		log:           logger,
		maxBodyLength: maxBodyLength,
	}
}

func (s *Service) normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", core.InvalidArgument("message body is required")
	}
	if utf8.RuneCountInString(body) > s.maxBodyLength {
		return "", core.InvalidArgument(fmt.Sprintf("message body exceeds %d characters", s.maxBodyLength))
	}
	return body, nil
}

// Create stores a new message from actor. A parent, when given, must exist and be
// visible to actor.
func (s *Service) Create(ctx context.Context, actor core.Actor, in CreateInput) (*store.Message, error) {
	body, err := s.normalizeBody(in.Body)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByID(ctx, in.ReceiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.InvalidArgument("receiver does not exist")
		}
		return nil, core.StoreFailure("get receiver", err)
	}

	if in.ParentID != nil {
		parent, err := s.store.GetMessage(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, core.InvariantViolation("parent message does not exist")
			}
			return nil, core.StoreFailure("get parent", err)
		}
		if !core.VisibleTo(actor)(parent) {
			return nil, core.InvariantViolation("parent message does not exist")
		}
	}

	msg := &store.Message{
		SenderID:   actor.UserID,
		ReceiverID: in.ReceiverID,
		ParentID:   in.ParentID,
		Body:       body,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, core.StoreFailure("create message", err)
	}

	kind := "root"
	if msg.ParentID != nil {
		kind = "reply"
	}
	metrics.MessagesCreated.WithLabelValues(kind).Inc()

	s.log.Debug().
		Int64("message_id", msg.ID).
		Int64("sender_id", msg.SenderID).
		Int64("receiver_id", msg.ReceiverID).
		Msg("message created")

	return msg, nil
}

// Get returns a message visible to actor.
func (s *Service) Get(ctx context.Context, actor core.Actor, id int64) (*store.Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, core.StoreFailure("get message", err)
	}
	if !core.VisibleTo(actor)(msg) {
		return nil, core.NotFound("message not found")
	}
	return msg, nil
}

// List returns messages visible to actor, newest first.
// If beforeID is provided, only messages older than it are returned.
func (s *Service) List(ctx context.Context, actor core.Actor, limit int, beforeID *int64) ([]*store.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var scope *int64
	if !actor.Privileged {
		scope = &actor.UserID
	}

	msgs, err := s.store.ListMessages(ctx, scope, limit, beforeID)
	if err != nil {
		return nil, core.StoreFailure("list messages", err)
	}
	return msgs, nil
}

// loadOwned fetches a message the actor may modify.
func (s *Service) loadOwned(ctx context.Context, actor core.Actor, id int64) (*store.Message, error) {
	msg, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actor.UserID && !actor.Privileged {
		return nil, core.PermissionDenied("only the sender can modify a message")
	}
	return msg, nil
}

// Edit replaces the body of a message. Concurrent edits of the same message are
// serialised so each history entry holds the body its edit actually replaced.
func (s *Service) Edit(ctx context.Context, actor core.Actor, id int64, body string) (*store.Message, error) {
	body, err := s.normalizeBody(body)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateMessageBody(ctx, id, body)
	if err != nil {
		return nil, core.StoreFailure("update message", err)
	}

	s.log.Debug().Int64("message_id", id).Bool("edited", updated.Edited).Msg("message updated")
	return updated, nil
}

// Delete removes a message. Replies become roots of their own threads.
func (s *Service) Delete(ctx context.Context, actor core.Actor, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return core.StoreFailure("delete message", err)
	}

	s.log.Info().Int64("message_id", id).Int64("actor_id", actor.UserID).Msg("message deleted")
	return nil
}
