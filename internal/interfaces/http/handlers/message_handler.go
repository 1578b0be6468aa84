package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/internal/usecases"
)

// MessageHandler manages reason message overrides. ?scope=global selects
// the global overrides (admin only), otherwise the caller's own.
type MessageHandler struct {
	messages *usecases.MessageUsecase
}

func NewMessageHandler(messages *usecases.MessageUsecase) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// ListMessages GET /api/v1/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	items, err := h.messages.List(c.Request.Context(), p, globalScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": items})
}

// SetMessage PUT /api/v1/messages/:code
func (h *MessageHandler) SetMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var input entities.SetMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	msg, err := h.messages.Set(c.Request.Context(), p, globalScope(c), entities.ReasonCode(c.Param("code")), input.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, msg)
}

// ResetMessage drops an override so the default applies again.
// DELETE /api/v1/messages/:code
func (h *MessageHandler) ResetMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.messages.Reset(c.Request.Context(), p, globalScope(c), entities.ReasonCode(c.Param("code"))); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
