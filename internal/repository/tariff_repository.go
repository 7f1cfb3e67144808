package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

// TariffRepository интерфейс каталога тарифов. Каталог read-only:
// тарифы заводятся миграцией, сервис их не меняет.
type TariffRepository interface {
	// GetByCode возвращает тариф по коду или ErrNotFound
	GetByCode(ctx context.Context, code string) (domain.Tariff, error)
}

// PostgresTariffRepository реализация каталога тарифов через PostgreSQL
type PostgresTariffRepository struct {
	db  Querier
	log *zap.Logger
}

// NewPostgresTariffRepository создает новый каталог тарифов через PostgreSQL
func NewPostgresTariffRepository(db Querier, log *zap.Logger) *PostgresTariffRepository {
	return &PostgresTariffRepository{
		db:  db,
		log: log,
	}
}

// GetByCode возвращает тариф по коду
func (r *PostgresTariffRepository) GetByCode(ctx context.Context, code string) (domain.Tariff, error) {
	query := `
		SELECT code, title, duration_months, price_rub, created_at
		FROM tariffs
		WHERE code = $1
	`

	var tariff domain.Tariff
	err := r.db.QueryRow(ctx, query, code).Scan(
		&tariff.Code,
		&tariff.Title,
		&tariff.DurationMonths,
		&tariff.PriceRub,
		&tariff.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tariff{}, ErrNotFound
		}
		return domain.Tariff{}, fmt.Errorf("failed to get tariff: %w", err)
	}

	return tariff, nil
}
