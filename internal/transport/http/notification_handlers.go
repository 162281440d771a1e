package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirethread/internal/service/notify"
)

// NotificationHandlers provides HTTP handlers for notification endpoints.
type NotificationHandlers struct {
	notifications *notify.Service
	log           *zerolog.Logger
}

// NewNotificationHandlers creates a new notification handlers instance.
func NewNotificationHandlers(svc *notify.Service, logger *zerolog.Logger) *NotificationHandlers {
	return &NotificationHandlers{notifications: svc, log: logger}
}

// List returns the caller's notifications.
// GET /api/notifications?unread=true
func (h *NotificationHandlers) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	items, err := h.notifications.List(c.Request.Context(), actor, c.Query("unread") == "true")
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, toNotificationResponse(n))
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead marks one of the caller's notifications as read.
// POST /api/notifications/:id/read
func (h *NotificationHandlers) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toNotificationResponse(n))
}
