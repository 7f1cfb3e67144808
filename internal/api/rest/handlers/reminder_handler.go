package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/service"
	"go.uber.org/zap"
)

// ReminderCallbackHandler обрабатывает входящие команды триггера напоминаний
type ReminderCallbackHandler interface {
	HandleCallback(ctx context.Context, req service.ReminderRequest) (service.ReminderResult, error)
}

// ReminderHandler обработчик callback-ов напоминаний
type ReminderHandler struct {
	reminders ReminderCallbackHandler
	log       *zap.Logger
}

// NewReminderHandler создает новый обработчик напоминаний
func NewReminderHandler(reminders ReminderCallbackHandler, log *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		reminders: reminders,
		log:       log,
	}
}

// HandleReminderNotify обрабатывает POST /reminder/notify
func (h *ReminderHandler) HandleReminderNotify(c *gin.Context) {
	var req service.ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": "missing_fields"})
		return
	}

	result, err := h.reminders.HandleCallback(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "reason": "missing_fields"})
			return
		}
		h.log.Error("Reminder callback failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "reason": "send_failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
