package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
// Собирается один раз на старте процесса и дальше не меняется.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	YooKassa struct {
		ShopID    string `mapstructure:"shopId"`
		SecretKey string `mapstructure:"secretKey"`
		ReturnURL string `mapstructure:"returnUrl"`
		Timeout   time.Duration
	} `mapstructure:"yookassa"`
	N8N struct {
		WebhookURL24h string `mapstructure:"webhookUrl24h"`
		WebhookURL48h string `mapstructure:"webhookUrl48h"`
		Timeout       time.Duration
	} `mapstructure:"n8n"`
	Telegram struct {
		BotToken string `mapstructure:"botToken"`
		APIBase  string `mapstructure:"apiBase"`
		Timeout  time.Duration
	} `mapstructure:"telegram"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален: в проде конфигурация приходит из окружения
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv() // Чтение переменных окружения

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Таймауты внешних вызовов ограничены секундами
	config.YooKassa.Timeout = 15 * time.Second
	config.N8N.Timeout = 10 * time.Second
	config.Telegram.Timeout = 10 * time.Second

	if config.Telegram.APIBase == "" {
		config.Telegram.APIBase = "https://api.telegram.org"
	}

	return &config, nil
}
