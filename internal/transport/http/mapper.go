package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/proto"
	"github.com/vovakirdan/wirethread/internal/store"
)

const timeLayout = time.RFC3339Nano

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID         int64   `json:"id"`
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	ParentID   *int64  `json:"parent_id"`
	Body       string  `json:"body"`
	CreatedAt  string  `json:"created_at"`
	Edited     bool    `json:"edited"`
	EditedAt   *string `json:"edited_at,omitempty"`
	Unread     bool    `json:"unread"`
}

// ThreadNodeResponse is a message with its nested replies.
type ThreadNodeResponse struct {
	MessageResponse
	Replies []ThreadNodeResponse `json:"replies"`
}

// ThreadResponse wraps a thread tree with summary counts.
type ThreadResponse struct {
	Root  ThreadNodeResponse `json:"root"`
	Size  int                `json:"size"`
	Depth int                `json:"depth"`
}

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        int64  `json:"id"`
	MessageID *int64 `json:"message_id"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"created_at"`
	IsRead    bool   `json:"is_read"`
}

// HistoryResponse represents one previous body of a message.
type HistoryResponse struct {
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	EditorID  int64  `json:"editor_id"`
	OldBody   string `json:"old_body"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponse(m *store.Message) MessageResponse {
	resp := MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		ParentID:   m.ParentID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UTC().Format(timeLayout),
		Edited:     m.Edited,
		Unread:     m.Unread,
	}
	if m.EditedAt != nil {
		editedAt := m.EditedAt.UTC().Format(timeLayout)
		resp.EditedAt = &editedAt
	}
	return resp
}

func toMessageResponses(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toThreadNode(n *core.Node) ThreadNodeResponse {
	node := ThreadNodeResponse{
		MessageResponse: toMessageResponse(n.Message),
		Replies:         make([]ThreadNodeResponse, 0, len(n.Replies)),
	}
	for _, r := range n.Replies {
		node.Replies = append(node.Replies, toThreadNode(r))
	}
	return node
}

func toNotificationResponse(n *store.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		MessageID: n.MessageID,
		Detail:    n.Detail,
		CreatedAt: n.CreatedAt.UTC().Format(timeLayout),
		IsRead:    n.IsRead,
	}
}

func toHistoryResponse(h *store.MessageHistory) HistoryResponse {
	return HistoryResponse{
		ID:        h.ID,
		MessageID: h.MessageID,
		EditorID:  h.EditorID,
		OldBody:   h.OldBody,
		CreatedAt: h.CreatedAt.UTC().Format(timeLayout),
	}
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Server-side failures are logged and their detail hidden.
func respondError(c *gin.Context, logger *zerolog.Logger, err error) {
	status := statusFor(err)
	code := core.Code(err)

	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Msg("request failed")
		msg := "internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "service temporarily unavailable"
		}
		c.JSON(status, ErrorResponse{Error: msg, Code: code})
		return
	}

	msg := err.Error()
	var ce *core.CoreError
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Code: core.ErrCodeInvalidArgument})
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional positive int64 query parameter.
func queryInt64(c *gin.Context, name string) (*int64, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Code: core.ErrCodeInvalidArgument})
		return nil, false
	}
	return &v, true
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNotification:
		n := event.Notification
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNotification,
			Data: proto.NotificationData{
				ID:        n.ID,
				MessageID: n.MessageID,
				Detail:    n.Detail,
				TS:        n.CreatedAt.Unix(),
			},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data: proto.MessageReadData{
				MessageID:  event.Message.ID,
				ReceiverID: event.Message.ReceiverID,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
