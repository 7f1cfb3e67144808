package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/service"
	"go.uber.org/zap"
)

// Reconciler обрабатывает сырое тело вебхука провайдера
type Reconciler interface {
	Handle(ctx context.Context, body []byte) (service.ReconciliationResult, error)
}

// WebhookHandler обработчик вебхуков платежного провайдера
type WebhookHandler struct {
	reconciler Reconciler
	notifier   service.ChatNotifier
	log        *zap.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(reconciler Reconciler, notifier service.ChatNotifier, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		notifier:   notifier,
		log:        log,
	}
}

const successText = "Оплата прошла успешно! Добро пожаловать в клуб — подключение уже в чате."

// HandleYooKassaWebhook обрабатывает вебхуки от ЮKassa
func (h *WebhookHandler) HandleYooKassaWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	result, err := h.reconciler.Handle(c.Request.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		case errors.Is(err, domain.ErrMissingCorrelationID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment_db_id"})
		default:
			// В том числе ErrPaymentNotFound: провайдер переотправит
			h.log.Error("Webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_error"})
		}
		return
	}

	if result.Status == service.ReconciliationIgnored {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// Уведомление пользователя — best-effort любезность, не условие
	// корректности: сверка уже закоммичена
	if h.notifier != nil && result.ChatID != 0 && !result.AlreadyProcessed {
		if err := h.notifier.SendMessage(c.Request.Context(), result.ChatID, successText); err != nil {
			h.log.Warn("Failed to notify user about successful payment",
				zap.Int64("chat_id", result.ChatID),
				zap.Int64("payment_id", result.PaymentID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
