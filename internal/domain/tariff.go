package domain

import (
	"time"
)

// Коды тарифов, известные боту
const (
	TariffCodeMonthly = "monthly"
	TariffCodeStable  = "stable"
)

// Tariff представляет собой тариф подписки
type Tariff struct {
	Code           string    `json:"code"`
	Title          string    `json:"title"`
	DurationMonths int       `json:"duration_months"`
	PriceRub       float64   `json:"price_rub"`
	CreatedAt      time.Time `json:"created_at"`
}
