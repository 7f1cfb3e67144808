package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/service"
	"go.uber.org/zap"
)

// PaymentHandler обработчик создания платежей (вход фронтенда бота)
type PaymentHandler struct {
	payments service.PaymentService
	log      *zap.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(payments service.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		log:      log,
	}
}

// CreatePayment обрабатывает POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req domain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.payments.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownTariff):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tariff"})
		case errors.Is(err, domain.ErrProviderCallFailed):
			// Пользователь видит ретраябельную ошибку
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not create payment, try again"})
		default:
			h.log.Error("Failed to initiate payment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetPayment обрабатывает GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		h.log.Error("Failed to get payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, payment)
}
