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

// PaymentRepository интерфейс для работы с платежами
type PaymentRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции
	WithTx(tx pgx.Tx) PaymentRepository

	Create(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, id int64) (domain.Payment, error)

	// AttachProviderID дописывает ID платежа у провайдера после
	// создания. Best-effort: строка могла исчезнуть, это не фатально.
	AttachProviderID(ctx context.Context, id int64, providerPaymentID string) error

	// MarkSucceeded условно переводит платеж pending -> succeeded.
	// Второе возвращаемое значение сообщает, произошел ли переход:
	// false означает, что строка уже не была в pending (повторная
	// доставка вебхука) и побочные эффекты применять нельзя.
	MarkSucceeded(ctx context.Context, id int64, providerPaymentID string, payload []byte, paidAt time.Time) (domain.Payment, bool, error)

	// SucceededByUserSince возвращает успешные платежи пользователя
	// с paid_at не раньше since, по возрастанию paid_at
	SucceededByUserSince(ctx context.Context, userID int64, since time.Time) ([]domain.Payment, error)
}

// PostgresPaymentRepository реализация репозитория платежей через PostgreSQL
type PostgresPaymentRepository struct {
	db  Querier
	log *zap.Logger
}

// NewPostgresPaymentRepository создает новый репозиторий платежей через PostgreSQL
func NewPostgresPaymentRepository(db Querier, log *zap.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

// WithTx возвращает копию репозитория, привязанную к транзакции
func (r *PostgresPaymentRepository) WithTx(tx pgx.Tx) PaymentRepository {
	return &PostgresPaymentRepository{db: tx, log: r.log}
}

const paymentColumns = `id, user_id, tariff_code, amount_rub, provider,
			COALESCE(provider_payment_id, ''), status, created_at, paid_at, metadata`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.TariffCode,
		&p.AmountRub,
		&p.Provider,
		&p.ProviderPaymentID,
		&p.Status,
		&p.CreatedAt,
		&p.PaidAt,
		&p.ProviderMetadata,
	)
	return p, err
}

// Create создает новый платеж в статусе pending.
// Сгенерированный базой ID — ключ корреляции для вебхука провайдера.
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	query := `
		INSERT INTO payments (user_id, tariff_code, amount_rub, provider, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + paymentColumns

	metadata := payment.ProviderMetadata
	if metadata == nil {
		metadata = []byte(`{}`)
	}

	created, err := scanPayment(r.db.QueryRow(ctx, query,
		payment.UserID,
		payment.TariffCode,
		payment.AmountRub,
		payment.Provider,
		payment.Status,
		metadata,
	))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}

	return created, nil
}

// GetByID возвращает платеж по ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// AttachProviderID дописывает ID платежа у провайдера
func (r *PostgresPaymentRepository) AttachProviderID(ctx context.Context, id int64, providerPaymentID string) error {
	query := `UPDATE payments SET provider_payment_id = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, providerPaymentID)
	if err != nil {
		return fmt.Errorf("failed to attach provider payment id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkSucceeded условно переводит платеж в succeeded.
// Условие status = 'pending' и есть идемпотентность: два конкурентных
// вебхука по одному payment_db_id не смогут оба получить переход.
func (r *PostgresPaymentRepository) MarkSucceeded(ctx context.Context, id int64, providerPaymentID string, payload []byte, paidAt time.Time) (domain.Payment, bool, error) {
	query := `
		UPDATE payments
		SET status = 'succeeded',
			paid_at = $2,
			provider_payment_id = $3,
			metadata = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id, paidAt, providerPaymentID, payload))
	if err == nil {
		return payment, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, false, fmt.Errorf("failed to mark payment succeeded: %w", err)
	}

	// Перехода не было: либо платеж уже обработан, либо его нет вовсе
	payment, err = r.GetByID(ctx, id)
	if err != nil {
		return domain.Payment{}, false, err
	}

	r.log.Info("Payment already transitioned, skipping side effects",
		zap.Int64("payment_id", id),
		zap.String("status", string(payment.Status)))

	return payment, false, nil
}

// SucceededByUserSince возвращает успешные платежи пользователя
func (r *PostgresPaymentRepository) SucceededByUserSince(ctx context.Context, userID int64, since time.Time) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND status = 'succeeded' AND paid_at >= $2
		ORDER BY paid_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
