package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	// GetOrCreate возвращает пользователя по telegram_id, создавая его
	// при первом обращении. Уникальный индекс на telegram_id гарантирует,
	// что дублей не будет даже при конкурентных запросах.
	GetOrCreate(ctx context.Context, req domain.UserRequest) (domain.User, error)

	// GetByID возвращает пользователя по внутреннему ID
	GetByID(ctx context.Context, id int64) (domain.User, error)

	// SetReminderSent выставляет одноразовый флаг отправленного
	// напоминания (24 или 48 часов)
	SetReminderSent(ctx context.Context, userID int64, delayHours int) error
}

// PostgresUserRepository реализация репозитория пользователей через PostgreSQL
type PostgresUserRepository struct {
	db  Querier
	log *zap.Logger
}

// NewPostgresUserRepository создает новый репозиторий пользователей через PostgreSQL
func NewPostgresUserRepository(db Querier, log *zap.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:  db,
		log: log,
	}
}

// WithTx возвращает копию репозитория, привязанную к транзакции
func (r *PostgresUserRepository) WithTx(tx pgx.Tx) *PostgresUserRepository {
	return &PostgresUserRepository{db: tx, log: r.log}
}

const userColumns = `id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''),
			notification_24h_sent, notification_48h_sent, created_at`

// GetOrCreate возвращает пользователя по telegram_id, создавая при необходимости
func (r *PostgresUserRepository) GetOrCreate(ctx context.Context, req domain.UserRequest) (domain.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT (telegram_id) DO UPDATE SET
			username   = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name)
		RETURNING ` + userColumns

	var user domain.User
	err := r.db.QueryRow(ctx, query, req.TelegramID, req.Username, req.FirstName).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.Notification24hSent,
		&user.Notification48hSent,
		&user.CreatedAt,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

// GetByID возвращает пользователя по внутреннему ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.Notification24hSent,
		&user.Notification48hSent,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// SetReminderSent выставляет флаг отправленного напоминания
func (r *PostgresUserRepository) SetReminderSent(ctx context.Context, userID int64, delayHours int) error {
	var column string
	switch delayHours {
	case 24:
		column = "notification_24h_sent"
	case 48:
		column = "notification_48h_sent"
	default:
		return fmt.Errorf("unsupported reminder delay: %d", delayHours)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = TRUE WHERE id = $1`, column)

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to set reminder flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.log.Warn("No user row updated for reminder flag", zap.Int64("user_id", userID))
		return ErrNotFound
	}

	return nil
}
