package telegram

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

// Config конфигурация для клиента Telegram Bot API
type Config struct {
	BotToken string
	APIBase  string
	Timeout  time.Duration
}

// Client представляет минимальный клиент Telegram Bot API.
// Сервису нужен ровно один метод — доставить сообщение в чат;
// рендеринг и содержание сообщений остаются заботой бота.
type Client struct {
	apiBase    string
	botToken   string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient создает новый клиент Telegram
func NewClient(cfg Config, log *zap.Logger) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiBase:    apiBase,
		botToken:   cfg.BotToken,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type sendMessageBody struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage отправляет текстовое сообщение в чат
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageBody{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.NewExternalServiceError("telegram", "send_failed", string(body), resp.StatusCode, nil)
	}

	c.log.Debug("Telegram message sent", zap.Int64("chat_id", chatID))
	return nil
}
