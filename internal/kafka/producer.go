package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

const (
	TopicPaymentCreated   = "payment.created"
	TopicPaymentSucceeded = "payment.succeeded"
)

// PaymentEvent представляет событие платежа для Kafka
type PaymentEvent struct {
	ID         int64                `json:"id"`
	UserID     int64                `json:"user_id"`
	TariffCode string               `json:"tariff_code"`
	AmountRub  float64              `json:"amount_rub"`
	Status     domain.PaymentStatus `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
}

// PaymentProducer интерфейс для отправки событий платежей
type PaymentProducer interface {
	PublishPaymentCreated(ctx context.Context, payment domain.Payment) error
	PublishPaymentSucceeded(ctx context.Context, payment domain.Payment) error
	Close() error
}

type kafkaPaymentProducer struct {
	producer sarama.SyncProducer
	log      *zap.Logger
}

// NewSyncProducer создает sarama SyncProducer для брокеров из конфигурации
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPaymentProducer создает новый продюсер событий платежей
func NewKafkaPaymentProducer(producer sarama.SyncProducer, log *zap.Logger) PaymentProducer {
	return &kafkaPaymentProducer{
		producer: producer,
		log:      log,
	}
}

// PublishPaymentCreated публикует событие о создании платежа
func (p *kafkaPaymentProducer) PublishPaymentCreated(ctx context.Context, payment domain.Payment) error {
	return p.publishEvent(ctx, TopicPaymentCreated, payment)
}

// PublishPaymentSucceeded публикует событие об успешной оплате
func (p *kafkaPaymentProducer) PublishPaymentSucceeded(ctx context.Context, payment domain.Payment) error {
	return p.publishEvent(ctx, TopicPaymentSucceeded, payment)
}

// publishEvent публикует событие платежа в Kafka
func (p *kafkaPaymentProducer) publishEvent(ctx context.Context, topic string, payment domain.Payment) error {
	event := PaymentEvent{
		ID:         payment.ID,
		UserID:     payment.UserID,
		TariffCode: payment.TariffCode,
		AmountRub:  payment.AmountRub,
		Status:     payment.Status,
		Timestamp:  time.Now(),
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(payment.ID, 10)),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}

	p.log.Info("Published payment event",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Close закрывает продюсер
func (p *kafkaPaymentProducer) Close() error {
	return p.producer.Close()
}
