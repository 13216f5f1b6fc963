package handlers

import (
	"net/http"

	"coachhub/internal/common"
	"coachhub/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MessageHandlers serves the chat REST API. All routes require an authenticated profile.
type MessageHandlers struct {
	chat  services.ChatService
	scope *TenantScope
	log   *zap.Logger
}

func NewMessageHandlers(chat services.ChatService, scope *TenantScope, log *zap.Logger) *MessageHandlers {
	return &MessageHandlers{chat: chat, scope: scope, log: log}
}

// ListMessages returns the caller's visible conversation, oldest first.
func (h *MessageHandlers) ListMessages(c echo.Context) error {
	profile, tenant, err := h.scope.requireTenant(c)
	if err != nil {
		return err
	}

	messages, err := h.chat.History(c.Request().Context(), profile, tenant.ID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to load messages")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages":  messages,
		"tenant_id": tenant.ID,
	})
}

// SendMessage persists a message. Clients are routed to their coach; staff name receiver_id.
func (h *MessageHandlers) SendMessage(c echo.Context) error {
	var req services.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	profile, tenant, err := h.scope.requireTenant(c)
	if err != nil {
		return err
	}

	msg, err := h.chat.Send(c.Request().Context(), profile, tenant.ID, &req)
	if err != nil {
		return respondError(c, h.log, err, "Failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead marks one received message as read.
func (h *MessageHandlers) MarkRead(c echo.Context) error {
	messageID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	profile, tenant, err := h.scope.requireTenant(c)
	if err != nil {
		return err
	}

	if err := h.chat.MarkRead(c.Request().Context(), profile, tenant.ID, messageID); err != nil {
		return respondError(c, h.log, err, "Failed to mark message as read")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessageHandlers) UnreadCount(c echo.Context) error {
	profile, tenant, err := h.scope.requireTenant(c)
	if err != nil {
		return err
	}

	count, err := h.chat.UnreadCount(c.Request().Context(), profile, tenant.ID)
	if err != nil {
		return respondError(c, h.log, err, "Failed to count unread messages")
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": count})
}
