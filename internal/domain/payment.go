package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusCanceled  PaymentStatus = "canceled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ProviderYooKassa имя платежного провайдера по умолчанию
const ProviderYooKassa = "yookassa"

// Payment представляет собой модель платежа.
// ID платежа — ключ корреляции: он передается провайдеру в metadata
// и возвращается обратно в вебхуке, чтобы найти эту же запись.
type Payment struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	TariffCode        string          `json:"tariff_code"`
	AmountRub         float64         `json:"amount_rub"`
	Provider          string          `json:"provider"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ProviderMetadata  json.RawMessage `json:"metadata,omitempty"`
}

// PaymentRequest представляет запрос на создание платежа
type PaymentRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	ChatID     int64  `json:"chat_id" binding:"required"`
	TariffCode string `json:"tariff_code" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}
