package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/kafka"
	"github.com/marketskills/subscription-service/internal/metrics"
	"github.com/marketskills/subscription-service/internal/repository"
	"go.uber.org/zap"
)

// EventPaymentSucceeded единственное событие провайдера с побочными
// эффектами; остальные логируются и игнорируются
const EventPaymentSucceeded = "payment.succeeded"

// TxRunner выполняет функцию в границах одной транзакции
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// providerEvent входящий вебхук провайдера
type providerEvent struct {
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

// providerObject разобранная часть object
type providerObject struct {
	ID       string `json:"id"`
	Metadata struct {
		PaymentDBID *int64 `json:"payment_db_id"`
		ChatID      int64  `json:"chat_id"`
		Tariff      string `json:"tariff"`
	} `json:"metadata"`
}

// Статусы результата сверки
const (
	ReconciliationOK      = "ok"
	ReconciliationIgnored = "ignored"
)

// ReconciliationResult результат обработки вебхука: всё, что нужно
// вызывающему для ответа провайдеру и уведомления пользователя
type ReconciliationResult struct {
	Status           string
	AlreadyProcessed bool
	PaymentID        int64
	ChatID           int64
	TariffCode       string
	SubscriptionEnd  time.Time
}

// ReconciliationService сопоставляет подтверждение провайдера с
// внутренним платежом и применяет его эффекты ровно один раз
type ReconciliationService struct {
	runner   TxRunner
	payments repository.PaymentRepository
	events   repository.PaymentEventRepository
	subs     repository.SubscriptionRepository
	engine   SubscriptionEngine
	producer kafka.PaymentProducer
	metrics  metrics.PaymentMetrics
	log      *zap.Logger
	now      func() time.Time
}

// NewReconciliationService создает новый сервис сверки платежей
func NewReconciliationService(
	runner TxRunner,
	payments repository.PaymentRepository,
	events repository.PaymentEventRepository,
	subs repository.SubscriptionRepository,
	engine SubscriptionEngine,
	producer kafka.PaymentProducer,
	m metrics.PaymentMetrics,
	log *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		runner:   runner,
		payments: payments,
		events:   events,
		subs:     subs,
		engine:   engine,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle обрабатывает сырое тело вебхука провайдера.
// Повторная доставка того же payment.succeeded безопасна: переход
// статуса условный, и движок подписок не вызывается второй раз.
func (s *ReconciliationService) Handle(ctx context.Context, body []byte) (ReconciliationResult, error) {
	var event providerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return ReconciliationResult{}, fmt.Errorf("invalid webhook body: %w", domain.ErrInvalidInput)
	}

	var object providerObject
	if len(event.Object) > 0 {
		if err := json.Unmarshal(event.Object, &object); err != nil {
			return ReconciliationResult{}, fmt.Errorf("invalid webhook object: %w", domain.ErrInvalidInput)
		}
	}

	s.log.Info("Provider webhook received",
		zap.String("event", event.Event),
		zap.String("provider_payment_id", object.ID),
		zap.Int64p("payment_db_id", object.Metadata.PaymentDBID),
		zap.Int64("chat_id", object.Metadata.ChatID),
		zap.String("tariff", object.Metadata.Tariff))

	if event.Event != EventPaymentSucceeded {
		s.metrics.IncWebhookEvent("ignored")
		return ReconciliationResult{Status: ReconciliationIgnored}, nil
	}

	if object.Metadata.PaymentDBID == nil {
		// Без внутреннего ID строку платежа не найти
		s.log.Error("Missing metadata.payment_db_id in webhook payload")
		s.metrics.IncWebhookEvent("missing_correlation_id")
		return ReconciliationResult{}, domain.ErrMissingCorrelationID
	}
	paymentID := *object.Metadata.PaymentDBID

	result := ReconciliationResult{
		Status:     ReconciliationOK,
		PaymentID:  paymentID,
		ChatID:     object.Metadata.ChatID,
		TariffCode: object.Metadata.Tariff,
	}

	var payment domain.Payment
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		events := s.events.WithTx(tx)

		var transitioned bool
		var err error
		payment, transitioned, err = payments.MarkSucceeded(ctx, paymentID, object.ID, event.Object, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("payment %d: %w", paymentID, domain.ErrPaymentNotFound)
			}
			return err
		}
		result.TariffCode = payment.TariffCode

		if err := events.Append(ctx, payment.ID, event.Event, event.Object); err != nil {
			return err
		}

		if !transitioned {
			// Повторная доставка: эффекты уже применены, только
			// отражаем текущее окно подписки в результате
			result.AlreadyProcessed = true
			current, err := s.subs.WithTx(tx).LatestActiveByUser(ctx, payment.UserID, false)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return err
			}
			result.SubscriptionEnd = current.EndAt
			return nil
		}

		sub, err := s.engine.ActivateOrExtend(ctx, tx, payment.UserID, payment.TariffCode)
		if err != nil {
			return err
		}
		result.SubscriptionEnd = sub.EndAt
		return nil
	})
	if err != nil {
		s.metrics.IncWebhookEvent("processing_error")
		return ReconciliationResult{}, err
	}

	if result.AlreadyProcessed {
		s.log.Info("Duplicate payment.succeeded delivery, no side effects",
			zap.Int64("payment_id", paymentID))
		s.metrics.IncWebhookEvent("duplicate")
		return result, nil
	}

	s.log.Info("Payment reconciled",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("user_id", payment.UserID),
		zap.String("tariff", payment.TariffCode),
		zap.Time("subscription_end", result.SubscriptionEnd))

	s.metrics.IncWebhookEvent("succeeded")
	s.metrics.IncPaymentSucceeded(payment.TariffCode)
	s.metrics.ObservePaymentAmount(payment.AmountRub, payment.TariffCode)

	if s.producer != nil {
		if err := s.producer.PublishPaymentSucceeded(ctx, payment); err != nil {
			s.log.Warn("Failed to publish payment.succeeded event", zap.Error(err))
		}
	}

	return result, nil
}
