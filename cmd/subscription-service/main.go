package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/marketskills/subscription-service/config"
	"github.com/marketskills/subscription-service/internal/api/rest"
	"github.com/marketskills/subscription-service/internal/api/rest/handlers"
	"github.com/marketskills/subscription-service/internal/db"
	"github.com/marketskills/subscription-service/internal/integration/n8n"
	"github.com/marketskills/subscription-service/internal/integration/telegram"
	"github.com/marketskills/subscription-service/internal/integration/yookassa"
	"github.com/marketskills/subscription-service/internal/kafka"
	"github.com/marketskills/subscription-service/internal/metrics"
	"github.com/marketskills/subscription-service/internal/repository"
	"github.com/marketskills/subscription-service/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем логгер
	log := initLogger()
	defer func() { _ = log.Sync() }()

	log.Info("Subscription service starting up...")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.YooKassa.ShopID == "" || cfg.YooKassa.SecretKey == "" {
		log.Warn("YooKassa credentials are not set, payment creation will fail")
	}

	// Устанавливаем режим Gin в зависимости от окружения
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключаемся к базе данных
	dbClient, err := db.NewClient(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbClient.Close()
	log.Info("Database connection established")

	// Базовые репозитории
	pool := dbClient.Pool()
	userRepo := repository.NewPostgresUserRepository(pool, log)
	paymentRepo := repository.NewPostgresPaymentRepository(pool, log)
	eventRepo := repository.NewPostgresPaymentEventRepository(pool, log)
	subscriptionRepo := repository.NewPostgresSubscriptionRepository(pool, log)
	baseTariffRepo := repository.NewPostgresTariffRepository(pool, log)

	// Каталог тарифов читается часто и меняется редко, поэтому
	// поверх него кеш. Redis не критичен: без него работаем напрямую.
	var tariffRepo repository.TariffRepository = baseTariffRepo
	redisClient, err := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warn("Failed to initialize Redis, continuing without tariff caching", zap.Error(err))
	} else {
		log.Info("Redis cache initialized")
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}()
		tariffRepo = repository.NewCachedTariffRepository(baseTariffRepo, redisClient, log)
	}

	// Интеграции с внешними сервисами
	yooClient := yookassa.NewClient(yookassa.Config{
		ShopID:    cfg.YooKassa.ShopID,
		SecretKey: cfg.YooKassa.SecretKey,
		ReturnURL: cfg.YooKassa.ReturnURL,
		Timeout:   cfg.YooKassa.Timeout,
	}, log)
	n8nClient := n8n.NewClient(n8n.Config{
		WebhookURL24h: cfg.N8N.WebhookURL24h,
		WebhookURL48h: cfg.N8N.WebhookURL48h,
		Timeout:       cfg.N8N.Timeout,
	}, log)
	tgClient := telegram.NewClient(telegram.Config{
		BotToken: cfg.Telegram.BotToken,
		APIBase:  cfg.Telegram.APIBase,
		Timeout:  cfg.Telegram.Timeout,
	}, log)

	// Kafka producer не критичен для основного флоу платежей
	var producer kafka.PaymentProducer
	syncProducer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Warn("Failed to initialize Kafka producer, continuing without event publishing", zap.Error(err))
	} else {
		log.Info("Kafka producer initialized")
		producer = kafka.NewKafkaPaymentProducer(syncProducer, log)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	// Service layer
	subscriptionService := service.NewSubscriptionService(tariffRepo, subscriptionRepo, log)
	paymentService := service.NewPaymentService(userRepo, tariffRepo, paymentRepo, yooClient, n8nClient, producer, paymentMetrics, log)
	reconciliationService := service.NewReconciliationService(dbClient, paymentRepo, eventRepo, subscriptionRepo, subscriptionService, producer, paymentMetrics, log)
	reminderService := service.NewReminderService(paymentRepo, userRepo, tgClient, paymentMetrics, log)
	repairService := service.NewRepairService(subscriptionRepo, paymentRepo, tariffRepo, log)

	// HTTP сервер
	router := rest.SetupRouter(rest.Handlers{
		Webhook:  handlers.NewWebhookHandler(reconciliationService, tgClient, log),
		Reminder: handlers.NewReminderHandler(reminderService, log),
		Payment:  handlers.NewPaymentHandler(paymentService, log),
		Admin:    handlers.NewAdminHandler(repairService, log),
	}, registry, log)

	server := rest.NewServer(router, cfg.App.Port, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server gracefully stopped")
	}

	log.Info("Cleanup finished. Goodbye!")
}

// initLogger инициализирует zap-логгер по окружению
func initLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("APP_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
