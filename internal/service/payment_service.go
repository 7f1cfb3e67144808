package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/integration/n8n"
	"github.com/marketskills/subscription-service/internal/integration/yookassa"
	"github.com/marketskills/subscription-service/internal/kafka"
	"github.com/marketskills/subscription-service/internal/metrics"
	"github.com/marketskills/subscription-service/internal/repository"
	"go.uber.org/zap"
)

// PaymentProvider интерфейс платежного провайдера (исходящий вызов)
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest) (yookassa.CreatePaymentResult, error)
}

// ReminderTrigger интерфейс внешнего триггера отложенных напоминаний
type ReminderTrigger interface {
	SendPaymentCreated(ctx context.Context, notice n8n.PaymentCreatedNotice) error
}

// PaymentInitResult результат инициации платежа для фронтенда бота
type PaymentInitResult struct {
	PaymentID         int64  `json:"payment_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	ConfirmationURL   string `json:"confirmation_url"`
}

// PaymentService интерфейс сервиса платежей
type PaymentService interface {
	// CreatePending создает платеж в статусе pending с суммой,
	// скопированной из каталога на момент создания
	CreatePending(ctx context.Context, userID int64, tariffCode string) (domain.Payment, error)

	// InitiatePayment полный путь фронтенда: upsert пользователя,
	// pending-платеж, создание платежа у провайдера, рассылка
	// отложенных напоминаний
	InitiatePayment(ctx context.Context, req domain.PaymentRequest) (PaymentInitResult, error)

	// GetByID возвращает платеж по внутреннему ID
	GetByID(ctx context.Context, id int64) (domain.Payment, error)
}

// paymentService реализация сервиса платежей
type paymentService struct {
	users    repository.UserRepository
	tariffs  repository.TariffRepository
	payments repository.PaymentRepository
	provider PaymentProvider
	reminder ReminderTrigger
	producer kafka.PaymentProducer
	metrics  metrics.PaymentMetrics
	log      *zap.Logger
	now      func() time.Time
}

// NewPaymentService создает новый сервис платежей
func NewPaymentService(
	users repository.UserRepository,
	tariffs repository.TariffRepository,
	payments repository.PaymentRepository,
	provider PaymentProvider,
	reminder ReminderTrigger,
	producer kafka.PaymentProducer,
	m metrics.PaymentMetrics,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		users:    users,
		tariffs:  tariffs,
		payments: payments,
		provider: provider,
		reminder: reminder,
		producer: producer,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePending создает платеж в статусе pending
func (s *paymentService) CreatePending(ctx context.Context, userID int64, tariffCode string) (domain.Payment, error) {
	tariff, err := s.tariffs.GetByCode(ctx, tariffCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, fmt.Errorf("tariff %q: %w", tariffCode, domain.ErrUnknownTariff)
		}
		return domain.Payment{}, fmt.Errorf("failed to resolve tariff: %w", err)
	}

	payment, err := s.payments.Create(ctx, domain.Payment{
		UserID:     userID,
		TariffCode: tariff.Code,
		AmountRub:  tariff.PriceRub,
		Provider:   domain.ProviderYooKassa,
		Status:     domain.PaymentStatusPending,
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("Pending payment created",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("user_id", userID),
		zap.String("tariff", tariff.Code),
		zap.Float64("amount_rub", payment.AmountRub))

	s.metrics.IncPaymentCreated(tariff.Code)

	return payment, nil
}

// InitiatePayment создает платеж и возвращает URL подтверждения провайдера
func (s *paymentService) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (PaymentInitResult, error) {
	user, err := s.users.GetOrCreate(ctx, domain.UserRequest{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
	})
	if err != nil {
		return PaymentInitResult{}, err
	}

	payment, err := s.CreatePending(ctx, user.ID, req.TariffCode)
	if err != nil {
		return PaymentInitResult{}, err
	}

	created, err := s.provider.CreatePayment(ctx, yookassa.CreatePaymentRequest{
		AmountRub:   payment.AmountRub,
		Description: fmt.Sprintf("Подписка %s", payment.TariffCode),
		Metadata: yookassa.Metadata{
			ChatID:      req.ChatID,
			Tariff:      payment.TariffCode,
			PaymentDBID: payment.ID,
		},
	})
	if err != nil {
		// Провайдер недоступен: платеж остается pending, пользователю
		// отдаем retryable-ошибку
		return PaymentInitResult{}, err
	}

	// Best-effort: сверка найдет строку и по payment_db_id из metadata
	if err := s.payments.AttachProviderID(ctx, payment.ID, created.ProviderPaymentID); err != nil {
		s.log.Warn("Failed to attach provider payment id",
			zap.Int64("payment_id", payment.ID),
			zap.String("provider_payment_id", created.ProviderPaymentID),
			zap.Error(err))
	}

	if s.producer != nil {
		if err := s.producer.PublishPaymentCreated(ctx, payment); err != nil {
			s.log.Warn("Failed to publish payment.created event", zap.Error(err))
		}
	}

	s.dispatchReminders(ctx, payment, user.ID, req.ChatID, created)

	return PaymentInitResult{
		PaymentID:         payment.ID,
		ProviderPaymentID: created.ProviderPaymentID,
		ConfirmationURL:   created.ConfirmationURL,
	}, nil
}

// dispatchReminders шлет уведомления в триггер напоминаний.
// Ошибки логируются и глотаются: путь создания платежа они не ломают.
func (s *paymentService) dispatchReminders(ctx context.Context, payment domain.Payment, userID, chatID int64, created yookassa.CreatePaymentResult) {
	if s.reminder == nil {
		return
	}

	for _, delay := range []int{24, 48} {
		notice := n8n.PaymentCreatedNotice{
			UserID:            userID,
			PaymentID:         payment.ID,
			ChatID:            chatID,
			TariffCode:        payment.TariffCode,
			AmountRub:         payment.AmountRub,
			ProviderPaymentID: created.ProviderPaymentID,
			PaymentURL:        created.ConfirmationURL,
			CreatedAt:         s.now().Format(time.RFC3339),
			DelayHours:        delay,
		}
		if err := s.reminder.SendPaymentCreated(ctx, notice); err != nil {
			s.log.Warn("Failed to dispatch reminder notice",
				zap.Int64("payment_id", payment.ID),
				zap.Int("delay_hours", delay),
				zap.Error(err))
			s.metrics.IncReminder("dispatch_failed")
			continue
		}
		s.metrics.IncReminder("dispatched")
	}
}

// GetByID возвращает платеж по внутреннему ID
func (s *paymentService) GetByID(ctx context.Context, id int64) (domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, err
	}
	return payment, nil
}
