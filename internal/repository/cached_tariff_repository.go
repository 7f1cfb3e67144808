package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

const (
	tariffKeyPrefix = "tariff:"

	// TTL для кэша. Тарифы неизменяемы, TTL нужен только чтобы
	// подхватить новые коды без инвалидации.
	tariffCacheTTL = 15 * time.Minute
)

// CachedTariffRepository реализует TariffRepository с кешированием в Redis.
// Промах или недоступность Redis прозрачно уходят в базовый каталог.
type CachedTariffRepository struct {
	base   TariffRepository
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient создает клиент Redis и проверяет соединение
func NewRedisClient(addr, password string, db int, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis successfully", zap.String("addr", addr))
	return client, nil
}

// NewCachedTariffRepository создает каталог тарифов с кешированием
func NewCachedTariffRepository(base TariffRepository, client *redis.Client, log *zap.Logger) *CachedTariffRepository {
	return &CachedTariffRepository{
		base:   base,
		client: client,
		log:    log,
	}
}

// GetByCode возвращает тариф из кеша или из базового каталога
func (r *CachedTariffRepository) GetByCode(ctx context.Context, code string) (domain.Tariff, error) {
	key := tariffKeyPrefix + code

	data, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var tariff domain.Tariff
		if err := json.Unmarshal(data, &tariff); err == nil {
			return tariff, nil
		}
		r.log.Warn("Failed to unmarshal cached tariff, falling back", zap.String("code", code))
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn("Error reading tariff from Redis, falling back", zap.Error(err), zap.String("code", code))
	}

	tariff, err := r.base.GetByCode(ctx, code)
	if err != nil {
		return domain.Tariff{}, err
	}

	if data, err := json.Marshal(tariff); err == nil {
		if err := r.client.Set(ctx, key, data, tariffCacheTTL).Err(); err != nil {
			r.log.Warn("Failed to cache tariff in Redis", zap.Error(err), zap.String("code", code))
		}
	}

	return tariff, nil
}
