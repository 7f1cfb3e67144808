package domain

import (
	"encoding/json"
	"time"
)

// PaymentEvent представляет запись аудита по платежу: один callback
// провайдера — одна строка. Лог только добавляется, записи никогда
// не изменяются и не удаляются.
type PaymentEvent struct {
	ID        int64           `json:"id"`
	PaymentID int64           `json:"payment_id"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
