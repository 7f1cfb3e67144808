package domain

import (
	"time"
)

// User представляет собой пользователя бота
type User struct {
	ID                  int64     `json:"id"`
	TelegramID          int64     `json:"telegram_id"`
	Username            string    `json:"username,omitempty"`
	FirstName           string    `json:"first_name,omitempty"`
	Notification24hSent bool      `json:"notification_24h_sent"`
	Notification48hSent bool      `json:"notification_48h_sent"`
	CreatedAt           time.Time `json:"created_at"`
}

// UserRequest представляет запрос на создание/обновление пользователя
type UserRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}
