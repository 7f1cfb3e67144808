package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"go.uber.org/zap"
)

// PaymentEventRepository интерфейс журнала событий платежей.
// Журнал только пополняется: по строке на каждый callback провайдера.
type PaymentEventRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции
	WithTx(tx pgx.Tx) PaymentEventRepository

	Append(ctx context.Context, paymentID int64, event string, payload []byte) error
}

// PostgresPaymentEventRepository реализация журнала через PostgreSQL
type PostgresPaymentEventRepository struct {
	db  Querier
	log *zap.Logger
}

// NewPostgresPaymentEventRepository создает новый журнал событий платежей
func NewPostgresPaymentEventRepository(db Querier, log *zap.Logger) *PostgresPaymentEventRepository {
	return &PostgresPaymentEventRepository{
		db:  db,
		log: log,
	}
}

// WithTx возвращает копию репозитория, привязанную к транзакции
func (r *PostgresPaymentEventRepository) WithTx(tx pgx.Tx) PaymentEventRepository {
	return &PostgresPaymentEventRepository{db: tx, log: r.log}
}

// Append добавляет запись в журнал
func (r *PostgresPaymentEventRepository) Append(ctx context.Context, paymentID int64, event string, payload []byte) error {
	query := `
		INSERT INTO payment_events (payments_id, event, payload)
		VALUES ($1, $2, $3)
	`

	if payload == nil {
		payload = []byte(`{}`)
	}

	if _, err := r.db.Exec(ctx, query, paymentID, event, payload); err != nil {
		return fmt.Errorf("failed to append payment event: %w", err)
	}

	return nil
}
