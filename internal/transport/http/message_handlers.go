package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/service/history"
	"github.com/vovakirdan/wirethread/internal/service/messages"
	"github.com/vovakirdan/wirethread/internal/service/threads"
	"github.com/vovakirdan/wirethread/internal/service/unread"
)

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	messages *messages.Service
	threads  *threads.Service
	unread   *unread.Service
	history  *history.Service
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(
	msgs *messages.Service,
	thr *threads.Service,
	unr *unread.Service,
	hist *history.Service,
	logger *zerolog.Logger,
) *MessageHandlers {
	return &MessageHandlers{
		messages: msgs,
		threads:  thr,
		unread:   unr,
		history:  hist,
		log:      logger,
	}
}

// CreateMessageRequest represents the create message request body.
type CreateMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" binding:"required"`
	ParentID   *int64 `json:"parent_id"`
	Body       string `json:"body" binding:"required"`
}

// EditMessageRequest represents the edit message request body.
type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// UnreadCountResponse carries the unread badge value.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

func (h *MessageHandlers) actor(c *gin.Context) (core.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	return actor, ok
}

// Create sends a new message, optionally as a reply.
// POST /api/messages
func (h *MessageHandlers) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeInvalidArgument})
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), actor, messages.CreateInput{
		ReceiverID: req.ReceiverID,
		ParentID:   req.ParentID,
		Body:       req.Body,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

// List returns messages visible to the caller, newest first.
// GET /api/messages?limit=50&before=123
func (h *MessageHandlers) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: core.ErrCodeInvalidArgument})
			return
		}
		limit = parsed
	}
	before, ok := queryInt64(c, "before")
	if !ok {
		return
	}

	msgs, err := h.messages.List(c.Request.Context(), actor, limit, before)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toMessageResponses(msgs))
}

// Get returns one message.
// GET /api/messages/:id
func (h *MessageHandlers) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toMessageResponse(msg))
}

// Edit replaces a message body.
// PATCH /api/messages/:id
func (h *MessageHandlers) Edit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid edit message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeInvalidArgument})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), actor, id, req.Body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toMessageResponse(msg))
}

// Delete removes a message.
// DELETE /api/messages/:id
func (h *MessageHandlers) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Thread returns the nested reply tree under a message.
// GET /api/messages/:id/thread
func (h *MessageHandlers) Thread(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	tree, err := h.threads.BuildThread(c.Request.Context(), id, core.VisibleTo(actor))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, ThreadResponse{
		Root:  toThreadNode(tree),
		Size:  tree.Size(),
		Depth: tree.Depth(),
	})
}

// ListUnread returns unread messages addressed to the caller. Staff may pass
// user_id to inspect another user's inbox.
// GET /api/messages/unread?user_id=7
func (h *MessageHandlers) ListUnread(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	receiverID, ok := h.unreadTarget(c, actor)
	if !ok {
		return
	}

	msgs, err := h.unread.ListUnread(c.Request.Context(), receiverID, core.VisibleTo(actor))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toMessageResponses(msgs))
}

// CountUnread returns the number of unread messages addressed to the caller.
// GET /api/messages/unread/count
func (h *MessageHandlers) CountUnread(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	receiverID, ok := h.unreadTarget(c, actor)
	if !ok {
		return
	}

	n, err := h.unread.CountUnread(c.Request.Context(), receiverID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, UnreadCountResponse{Count: n})
}

func (h *MessageHandlers) unreadTarget(c *gin.Context, actor core.Actor) (int64, bool) {
	target, ok := queryInt64(c, "user_id")
	if !ok {
		return 0, false
	}
	if target == nil || *target == actor.UserID {
		return actor.UserID, true
	}
	if !actor.Privileged {
		respondError(c, h.log, core.PermissionDenied("only staff can read another user's inbox"))
		return 0, false
	}
	return *target, true
}

// MarkRead acknowledges a message addressed to the caller.
// POST /api/messages/:id/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	msg, err := h.unread.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toMessageResponse(msg))
}

// History lists previous bodies of a message, newest first.
// GET /api/messages/:id/history
func (h *MessageHandlers) History(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	entries, err := h.history.List(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toHistoryResponse(e))
	}
	c.JSON(http.StatusOK, resp)
}
