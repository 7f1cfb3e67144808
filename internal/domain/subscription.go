package domain

import (
	"time"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Subscription представляет собой окно действия подписки [StartAt, EndAt).
// У пользователя в каждый момент не больше одной активной подписки
// с EndAt в будущем — движок подписок продлевает существующую запись,
// а не вставляет новую.
type Subscription struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	TariffCode string             `json:"tariff_code"`
	StartAt    time.Time          `json:"start_at"`
	EndAt      time.Time          `json:"end_at"`
	Status     SubscriptionStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

// IsCurrent сообщает, действует ли подписка в момент now
func (s Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndAt.After(now)
}
