package service

import (
	"context"
	"errors"
	"time"

	"github.com/marketskills/subscription-service/internal/repository"
	"go.uber.org/zap"
)

// RepairEntry одна найденная расхождением подписка
type RepairEntry struct {
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	TariffCode     string    `json:"tariff_code"`
	OldEndAt       time.Time `json:"old_end_at"`
	NewEndAt       time.Time `json:"new_end_at"`
}

// RepairReport итог прогона задачи ремонта
type RepairReport struct {
	DryRun  bool          `json:"dry_run"`
	Checked int           `json:"checked"`
	Drifted int           `json:"drifted"`
	Updated int           `json:"updated"`
	Entries []RepairEntry `json:"entries"`
}

// RepairService пересчитывает окна активных подписок по успешным
// платежам их владельцев той же логикой, что работает вживую.
// Неинтерактивный и идемпотентный: пишет только реальные расхождения,
// повторный прогон по исправленной базе ничего не меняет.
type RepairService struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	tariffs  repository.TariffRepository
	log      *zap.Logger
}

// NewRepairService создает новую задачу ремонта подписок
func NewRepairService(
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	tariffs repository.TariffRepository,
	log *zap.Logger,
) *RepairService {
	return &RepairService{
		subs:     subs,
		payments: payments,
		tariffs:  tariffs,
		log:      log,
	}
}

// Run проверяет все активные подписки. При dryRun изменения только
// попадают в отчет, база не трогается.
func (s *RepairService) Run(ctx context.Context, dryRun bool) (RepairReport, error) {
	report := RepairReport{DryRun: dryRun}

	subs, err := s.subs.AllActive(ctx)
	if err != nil {
		return report, err
	}

	for _, sub := range subs {
		report.Checked++

		// Небольшой люфт назад: платеж, породивший подписку, оплачен
		// тем же моментом, что и start_at
		since := sub.StartAt.Add(-time.Minute)
		payments, err := s.payments.SucceededByUserSince(ctx, sub.UserID, since)
		if err != nil {
			return report, err
		}
		if len(payments) == 0 {
			// Окно не выводится из платежей, трогать нечего
			continue
		}

		expected := sub.StartAt
		skip := false
		for _, p := range payments {
			months, err := s.monthsFor(ctx, p.TariffCode)
			if err != nil {
				s.log.Warn("Skipping subscription: payment references unknown tariff",
					zap.Int64("subscription_id", sub.ID),
					zap.Int64("payment_id", p.ID),
					zap.String("tariff", p.TariffCode))
				skip = true
				break
			}
			expected = addMonths(expected, months)
		}
		if skip {
			continue
		}

		if expected.Equal(sub.EndAt) {
			continue
		}

		report.Drifted++
		entry := RepairEntry{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			TariffCode:     sub.TariffCode,
			OldEndAt:       sub.EndAt,
			NewEndAt:       expected,
		}
		report.Entries = append(report.Entries, entry)

		if dryRun {
			s.log.Info("Subscription drift detected (dry run)",
				zap.Int64("subscription_id", sub.ID),
				zap.Time("old_end_at", sub.EndAt),
				zap.Time("new_end_at", expected))
			continue
		}

		if err := s.subs.UpdateEndAt(ctx, sub.ID, expected); err != nil {
			return report, err
		}
		report.Updated++

		s.log.Info("Subscription window repaired",
			zap.Int64("subscription_id", sub.ID),
			zap.Time("old_end_at", sub.EndAt),
			zap.Time("new_end_at", expected))
	}

	return report, nil
}

// monthsFor возвращает длительность периода для тарифа платежа
func (s *RepairService) monthsFor(ctx context.Context, tariffCode string) (int, error) {
	tariff, err := s.tariffs.GetByCode(ctx, tariffCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Для известных кодов каталог не обязателен
			if months := resolveMonths(tariffCode, 0); months > 0 {
				return months, nil
			}
		}
		return 0, err
	}
	return resolveMonths(tariffCode, tariff.DurationMonths), nil
}
