package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/repository"
	"go.uber.org/zap"
)

// SubscriptionEngine интерфейс движка подписок
type SubscriptionEngine interface {
	// ActivateOrExtend создает пользователю подписку по тарифу или
	// продлевает существующую активную. Вызывается внутри транзакции
	// сверки платежа: tx передается сюда, чтобы чтение и запись окна
	// подписки попали в тот же скоуп, что и переход платежа.
	ActivateOrExtend(ctx context.Context, tx pgx.Tx, userID int64, tariffCode string) (domain.Subscription, error)
}

// SubscriptionService реализация движка подписок
type SubscriptionService struct {
	tariffs repository.TariffRepository
	subs    repository.SubscriptionRepository
	log     *zap.Logger
	now     func() time.Time
}

// NewSubscriptionService создает новый движок подписок
func NewSubscriptionService(tariffs repository.TariffRepository, subs repository.SubscriptionRepository, log *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		tariffs: tariffs,
		subs:    subs,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// resolveMonths возвращает длительность периода в месяцах для тарифа.
// Для двух известных кодов длительность зашита, для остальных берется
// duration_months из каталога.
func resolveMonths(tariffCode string, catalogMonths int) int {
	switch tariffCode {
	case domain.TariffCodeMonthly:
		return 1
	case domain.TariffCodeStable:
		return 3
	default:
		return catalogMonths
	}
}

// addMonths прибавляет календарные месяцы с прижатием числа к концу
// месяца: 31 января + 1 месяц = 29 февраля (високосный год) или
// 28 февраля, а не фиксированные 30 дней.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ActivateOrExtend создает или продлевает активную подписку пользователя
func (s *SubscriptionService) ActivateOrExtend(ctx context.Context, tx pgx.Tx, userID int64, tariffCode string) (domain.Subscription, error) {
	tariff, err := s.tariffs.GetByCode(ctx, tariffCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, fmt.Errorf("tariff %q: %w", tariffCode, domain.ErrUnknownTariff)
		}
		return domain.Subscription{}, fmt.Errorf("failed to resolve tariff: %w", err)
	}

	months := resolveMonths(tariffCode, tariff.DurationMonths)
	now := s.now()

	subs := s.subs.WithTx(tx)

	// FOR UPDATE держит строку до конца транзакции: два конкурентных
	// успешных платежа одного пользователя выстраиваются в очередь
	// и дают одно создание плюс одно продление, а не две новые подписки.
	current, err := subs.LatestActiveByUser(ctx, userID, true)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, err
	}

	if err == nil && current.EndAt.After(now) {
		newEnd := addMonths(current.EndAt, months)
		if err := subs.UpdateEndAt(ctx, current.ID, newEnd); err != nil {
			return domain.Subscription{}, err
		}
		current.EndAt = newEnd

		s.log.Info("Subscription extended",
			zap.Int64("user_id", userID),
			zap.Int64("subscription_id", current.ID),
			zap.String("tariff", tariffCode),
			zap.Time("end_at", newEnd))

		return current, nil
	}

	created, err := subs.Create(ctx, domain.Subscription{
		UserID:     userID,
		TariffCode: tariff.Code,
		StartAt:    now,
		EndAt:      addMonths(now, months),
		Status:     domain.SubscriptionStatusActive,
	})
	if err != nil {
		return domain.Subscription{}, err
	}

	s.log.Info("Subscription created",
		zap.Int64("user_id", userID),
		zap.Int64("subscription_id", created.ID),
		zap.String("tariff", tariffCode),
		zap.Time("end_at", created.EndAt))

	return created, nil
}
