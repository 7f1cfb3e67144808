package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

// Config конфигурация для клиента n8n
type Config struct {
	WebhookURL24h string
	WebhookURL48h string
	Timeout       time.Duration
}

// Client представляет клиент внешнего триггера напоминаний (n8n)
type Client struct {
	webhookURL24h string
	webhookURL48h string
	httpClient    *http.Client
	log           *zap.Logger
}

// NewClient создает новый клиент n8n
func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		webhookURL24h: cfg.WebhookURL24h,
		webhookURL48h: cfg.WebhookURL48h,
		httpClient:    &http.Client{Timeout: timeout},
		log:           log,
	}
}

// PaymentCreatedNotice уведомление о созданном платеже для отложенного
// напоминания. n8n вернет его нам через /reminder/notify спустя DelayHours.
type PaymentCreatedNotice struct {
	EventType         string  `json:"event_type"`
	UserID            int64   `json:"user_id"`
	PaymentID         int64   `json:"payment_id"`
	ChatID            int64   `json:"chat_id"`
	TariffCode        string  `json:"tariff_code"`
	AmountRub         float64 `json:"amount_rub"`
	ProviderPaymentID string  `json:"provider_payment_id"`
	PaymentURL        string  `json:"payment_url"`
	CreatedAt         string  `json:"created_at"`
	DelayHours        int     `json:"delay_hours"`
}

// SendPaymentCreated отправляет уведомление о созданном платеже.
// Вызывающий глотает ошибку: недоступность n8n не должна ломать
// создание платежа.
func (c *Client) SendPaymentCreated(ctx context.Context, notice PaymentCreatedNotice) error {
	var url string
	switch notice.DelayHours {
	case 24:
		url = c.webhookURL24h
	case 48:
		url = c.webhookURL48h
	default:
		return fmt.Errorf("unsupported reminder delay: %d", notice.DelayHours)
	}

	if url == "" {
		c.log.Warn("n8n webhook URL is not configured", zap.Int("delay_hours", notice.DelayHours))
		return fmt.Errorf("n8n webhook url for %dh is not configured", notice.DelayHours)
	}

	notice.EventType = "payment_created"
	if notice.CreatedAt == "" {
		notice.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal n8n notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build n8n request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("n8n dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.NewExternalServiceError("n8n", "dispatch_failed", string(body), resp.StatusCode, nil)
	}

	c.log.Info("n8n payment_created notice dispatched",
		zap.Int64("payment_id", notice.PaymentID),
		zap.Int("delay_hours", notice.DelayHours))

	return nil
}
