package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/metrics"
	"github.com/marketskills/subscription-service/internal/repository"
	"go.uber.org/zap"
)

// ChatNotifier доставляет сообщение в чат пользователя
type ChatNotifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ReminderRequest входящий callback триггера напоминаний
type ReminderRequest struct {
	DelayHours int   `json:"delay_hours" binding:"required"`
	PaymentID  int64 `json:"payment_id" binding:"required"`
	ChatID     int64 `json:"chat_id" binding:"required"`
	UserID     int64 `json:"user_id"`
}

// Статусы результата обработки напоминания
const (
	ReminderStatusOK      = "ok"
	ReminderStatusSkipped = "skipped"
)

// ReminderResult результат обработки callback-а напоминаний
type ReminderResult struct {
	Status           string `json:"status"`
	NotificationType string `json:"notification_type,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// ReminderService принимает отложенные команды "напомни сейчас" и
// доставляет напоминание, если платеж все еще не оплачен
type ReminderService struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	notifier ChatNotifier
	metrics  metrics.PaymentMetrics
	log      *zap.Logger
}

// NewReminderService создает новый сервис напоминаний
func NewReminderService(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	notifier ChatNotifier,
	m metrics.PaymentMetrics,
	log *zap.Logger,
) *ReminderService {
	return &ReminderService{
		payments: payments,
		users:    users,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

const reminderText = "Напоминаем: ваш платеж за подписку ожидает оплаты. Вернитесь по ссылке из чата, чтобы завершить оплату."

// HandleCallback обрабатывает входящий callback напоминания.
// Просроченные напоминания по уже оплаченным платежам не доставляются.
func (s *ReminderService) HandleCallback(ctx context.Context, req ReminderRequest) (ReminderResult, error) {
	if req.DelayHours != 24 && req.DelayHours != 48 {
		return ReminderResult{}, fmt.Errorf("unsupported delay_hours %d: %w", req.DelayHours, domain.ErrInvalidInput)
	}

	payment, err := s.payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info("Reminder skipped: payment not found", zap.Int64("payment_id", req.PaymentID))
			s.metrics.IncReminder("skipped")
			return ReminderResult{Status: ReminderStatusSkipped, Reason: "payment_not_found"}, nil
		}
		return ReminderResult{}, err
	}

	if payment.Status != domain.PaymentStatusPending {
		s.log.Info("Reminder skipped: payment is no longer pending",
			zap.Int64("payment_id", payment.ID),
			zap.String("status", string(payment.Status)))
		s.metrics.IncReminder("skipped")
		return ReminderResult{Status: ReminderStatusSkipped, Reason: "payment_not_pending"}, nil
	}

	user, err := s.users.GetByID(ctx, payment.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return ReminderResult{}, err
	}

	// Одноразовые флаги: повторная доставка callback-а не приводит
	// ко второму сообщению
	if err == nil {
		if (req.DelayHours == 24 && user.Notification24hSent) ||
			(req.DelayHours == 48 && user.Notification48hSent) {
			s.log.Info("Reminder skipped: already sent",
				zap.Int64("payment_id", payment.ID),
				zap.Int("delay_hours", req.DelayHours))
			s.metrics.IncReminder("skipped")
			return ReminderResult{Status: ReminderStatusSkipped, Reason: "already_sent"}, nil
		}
	}

	if err := s.notifier.SendMessage(ctx, req.ChatID, reminderText); err != nil {
		s.log.Error("Failed to send reminder",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("chat_id", req.ChatID),
			zap.Error(err))
		s.metrics.IncReminder("send_failed")
		return ReminderResult{}, err
	}

	if err := s.users.SetReminderSent(ctx, payment.UserID, req.DelayHours); err != nil {
		s.log.Warn("Failed to set reminder flag",
			zap.Int64("user_id", payment.UserID),
			zap.Int("delay_hours", req.DelayHours),
			zap.Error(err))
	}

	s.log.Info("Reminder delivered",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Int("delay_hours", req.DelayHours))
	s.metrics.IncReminder("sent")

	return ReminderResult{
		Status:           ReminderStatusOK,
		NotificationType: fmt.Sprintf("reminder_%dh", req.DelayHours),
	}, nil
}
