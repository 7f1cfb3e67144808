package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketskills/subscription-service/internal/api/rest/handlers"
	"github.com/marketskills/subscription-service/internal/api/rest/middleware"
	"go.uber.org/zap"
)

// Handlers все обработчики, которые нужны роутеру
type Handlers struct {
	Webhook  *handlers.WebhookHandler
	Reminder *handlers.ReminderHandler
	Payment  *handlers.PaymentHandler
	Admin    *handlers.AdminHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(h Handlers, registry *prometheus.Registry, log *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// API для фронтенда бота
	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", h.Payment.CreatePayment)
			payments.GET("/:id", h.Payment.GetPayment)
		}
	}

	// Входящие callbacks внешних систем
	r.POST("/yookassa/webhook", h.Webhook.HandleYooKassaWebhook)
	r.POST("/reminder/notify", h.Reminder.HandleReminderNotify)

	// Административные операции
	admin := r.Group("/admin")
	{
		admin.POST("/subscriptions/repair", h.Admin.RepairSubscriptions)
	}

	return r
}
