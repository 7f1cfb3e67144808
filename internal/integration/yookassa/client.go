package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Config конфигурация для клиента ЮKassa
type Config struct {
	ShopID    string
	SecretKey string
	ReturnURL string
	Timeout   time.Duration
	BaseURL   string
}

// Client представляет клиент для работы с API ЮKassa
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient создает новый клиент ЮKassa
func NewClient(cfg Config, log *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		returnURL:  cfg.ReturnURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Metadata блок корреляции, который провайдер вернет в вебхуке.
// PaymentDBID — внутренний ID платежа, по нему вебхук находит
// свою строку в payments.
type Metadata struct {
	ChatID      int64  `json:"chat_id"`
	Tariff      string `json:"tariff"`
	PaymentDBID int64  `json:"payment_db_id"`
}

// CreatePaymentRequest запрос на создание платежа у провайдера
type CreatePaymentRequest struct {
	AmountRub   float64
	Description string
	Metadata    Metadata
}

// CreatePaymentResult результат создания платежа у провайдера
type CreatePaymentResult struct {
	ProviderPaymentID string
	ConfirmationURL   string
}

type createPaymentBody struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Capture      bool `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string   `json:"description,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

type createPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment создает платеж у провайдера и возвращает URL для оплаты.
// Idempotence-Key генерируется на каждую попытку: дедупликация на
// стороне провайдера, наша корреляция живет в metadata.payment_db_id.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResult, error) {
	var body createPaymentBody
	body.Amount.Value = fmt.Sprintf("%.2f", req.AmountRub)
	body.Amount.Currency = "RUB"
	body.Capture = true
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = c.returnURL
	body.Description = req.Description
	body.Metadata = req.Metadata

	payload, err := json.Marshal(body)
	if err != nil {
		return CreatePaymentResult{}, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return CreatePaymentResult{}, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", uuid.NewString())
	httpReq.SetBasicAuth(c.shopID, c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error("YooKassa create payment request failed", zap.Error(err))
		return CreatePaymentResult{}, fmt.Errorf("yookassa create payment: %v: %w", err, domain.ErrProviderCallFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreatePaymentResult{}, fmt.Errorf("yookassa read response: %v: %w", err, domain.ErrProviderCallFailed)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("YooKassa create payment returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return CreatePaymentResult{}, domain.NewExternalServiceError(
			"yookassa", "create_payment_failed", string(respBody), resp.StatusCode, domain.ErrProviderCallFailed)
	}

	var parsed createPaymentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return CreatePaymentResult{}, fmt.Errorf("yookassa decode response: %v: %w", err, domain.ErrProviderCallFailed)
	}

	c.log.Info("YooKassa payment created",
		zap.String("provider_payment_id", parsed.ID),
		zap.Int64("payment_db_id", req.Metadata.PaymentDBID))

	return CreatePaymentResult{
		ProviderPaymentID: parsed.ID,
		ConfirmationURL:   parsed.Confirmation.ConfirmationURL,
	}, nil
}
