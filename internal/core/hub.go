package core

import (
	"context"

	"github.com/rs/zerolog"
)

const publishBuffer = 256

// Publisher pushes events to the sessions of a user.
type Publisher interface {
	Publish(userID int64, ev *Event) bool
}

type delivery struct {
	userID int64
	event  *Event
}

// Hub fans events out to every connected session of a user.
// The registry is owned by the Run goroutine; all access goes through channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan delivery
	done       chan struct{}

	clients map[int64]map[*Client]struct{}
	log     *zerolog.Logger
}

// NewHub creates a new hub. Call Run to start it.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan delivery, publishBuffer),
		done:       make(chan struct{}),
		clients:    make(map[int64]map[*Client]struct{}),
		log:        logger,
	}
}

// Run processes registrations and deliveries until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			sessions, ok := h.clients[c.UserID]
			if !ok {
				sessions = make(map[*Client]struct{})
				h.clients[c.UserID] = sessions
			}
			sessions[c] = struct{}{}
			h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Msg("client registered")
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.publish:
			for c := range h.clients[d.userID] {
				select {
				case c.Events <- d.event:
				default:
					// Drop if slow consumer.
					h.log.Warn().Str("client_id", c.ID).Msg("dropping event for slow client")
				}
			}
		case <-ctx.Done():
			for _, sessions := range h.clients {
				for c := range sessions {
					close(c.Events)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	sessions, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := sessions[c]; !ok {
		return
	}
	delete(sessions, c)
	close(c.Events)
	if len(sessions) == 0 {
		delete(h.clients, c.UserID)
	}
	h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Msg("client unregistered")
}

// RegisterClient adds a session. Once the hub has stopped it closes c.Events
// instead, so the session ends right away.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Events)
	}
}

// UnregisterClient removes a session and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues ev for every session of userID without blocking.
// It reports false when the event was dropped.
func (h *Hub) Publish(userID int64, ev *Event) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.publish <- delivery{userID: userID, event: ev}:
		return true
	default:
		return false
	}
}
