package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client представляет клиент для работы с базой данных.
type Client struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewClient создает новый экземпляр Client.
func NewClient(ctx context.Context, dsn string, log *zap.Logger) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Failed to ping database", zap.Error(err))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool, log: log}, nil
}

// Pool возвращает пул соединений.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close закрывает соединение с базой данных.
func (c *Client) Close() {
	c.pool.Close()
}

// WithTx выполняет fn внутри одной транзакции: commit при успехе,
// rollback при ошибке. Вся сверка платежа и продление подписки
// проходят в одном таком скоупе.
func (c *Client) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		c.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			c.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		c.log.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
