package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

// SubscriptionRepository интерфейс для работы с подписками
type SubscriptionRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции
	WithTx(tx pgx.Tx) SubscriptionRepository

	// LatestActiveByUser возвращает самую позднюю активную подписку
	// пользователя (по end_at). forUpdate блокирует строку до конца
	// транзакции, чтобы два конкурентных платежа не продлили подписку
	// независимо друг от друга.
	LatestActiveByUser(ctx context.Context, userID int64, forUpdate bool) (domain.Subscription, error)

	Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)
	UpdateEndAt(ctx context.Context, id int64, endAt time.Time) error

	// AllActive возвращает все активные подписки (для задачи ремонта)
	AllActive(ctx context.Context) ([]domain.Subscription, error)
}

// PostgresSubscriptionRepository реализация репозитория подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  Querier
	log *zap.Logger
}

// NewPostgresSubscriptionRepository создает новый репозиторий подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db Querier, log *zap.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

// WithTx возвращает копию репозитория, привязанную к транзакции
func (r *PostgresSubscriptionRepository) WithTx(tx pgx.Tx) SubscriptionRepository {
	return &PostgresSubscriptionRepository{db: tx, log: r.log}
}

const subscriptionColumns = `id, user_id, tariff_code, start_at, end_at, status, created_at`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TariffCode,
		&s.StartAt,
		&s.EndAt,
		&s.Status,
		&s.CreatedAt,
	)
	return s, err
}

// LatestActiveByUser возвращает самую позднюю активную подписку пользователя
func (r *PostgresSubscriptionRepository) LatestActiveByUser(ctx context.Context, userID int64, forUpdate bool) (domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY end_at DESC
		LIMIT 1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// Create создает новую подписку
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, tariff_code, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + subscriptionColumns

	created, err := scanSubscription(r.db.QueryRow(ctx, query,
		sub.UserID,
		sub.TariffCode,
		sub.StartAt,
		sub.EndAt,
		sub.Status,
	))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return created, nil
}

// UpdateEndAt продлевает подписку до нового end_at
func (r *PostgresSubscriptionRepository) UpdateEndAt(ctx context.Context, id int64, endAt time.Time) error {
	query := `UPDATE subscriptions SET end_at = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, endAt)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.log.Warn("No subscription row updated", zap.Int64("subscription_id", id))
		return ErrNotFound
	}

	return nil
}

// AllActive возвращает все активные подписки
func (r *PostgresSubscriptionRepository) AllActive(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active'
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}
