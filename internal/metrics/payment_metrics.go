package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics интерфейс для метрик платежного конвейера
type PaymentMetrics interface {
	IncPaymentCreated(tariff string)
	IncPaymentSucceeded(tariff string)
	ObservePaymentAmount(amount float64, tariff string)
	IncWebhookEvent(outcome string)
	IncReminder(outcome string)
}

type paymentMetrics struct {
	paymentsCreated   *prometheus.CounterVec
	paymentsSucceeded *prometheus.CounterVec
	paymentsAmount    *prometheus.HistogramVec
	webhookEvents     *prometheus.CounterVec
	reminders         *prometheus.CounterVec
}

// NewPaymentMetrics создает новые метрики платежей
func NewPaymentMetrics(registry *prometheus.Registry) PaymentMetrics {
	paymentsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "The total number of created payment intents",
		},
		[]string{"tariff"},
	)

	paymentsSucceeded := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_succeeded_total",
			Help: "The total number of successfully reconciled payments",
		},
		[]string{"tariff"},
	)

	paymentsAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payments_amount_rub",
			Help:    "Payment amounts distribution",
			Buckets: prometheus.ExponentialBuckets(100, 2, 8), // 100 .. 12800
		},
		[]string{"tariff"},
	)

	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_webhook_events_total",
			Help: "The total number of provider webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	reminders := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_dispatches_total",
			Help: "The total number of reminder dispatches by outcome",
		},
		[]string{"outcome"},
	)

	return &paymentMetrics{
		paymentsCreated:   paymentsCreated,
		paymentsSucceeded: paymentsSucceeded,
		paymentsAmount:    paymentsAmount,
		webhookEvents:     webhookEvents,
		reminders:         reminders,
	}
}

// IncPaymentCreated увеличивает счетчик созданных платежей
func (m *paymentMetrics) IncPaymentCreated(tariff string) {
	m.paymentsCreated.WithLabelValues(tariff).Inc()
}

// IncPaymentSucceeded увеличивает счетчик успешных платежей
func (m *paymentMetrics) IncPaymentSucceeded(tariff string) {
	m.paymentsSucceeded.WithLabelValues(tariff).Inc()
}

// ObservePaymentAmount записывает сумму платежа
func (m *paymentMetrics) ObservePaymentAmount(amount float64, tariff string) {
	m.paymentsAmount.WithLabelValues(tariff).Observe(amount)
}

// IncWebhookEvent увеличивает счетчик вебхук-событий по исходу
func (m *paymentMetrics) IncWebhookEvent(outcome string) {
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// IncReminder увеличивает счетчик напоминаний по исходу
func (m *paymentMetrics) IncReminder(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}
