package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует события купонов в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронный producer
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает producer
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishCouponCreated публикует событие создания купона
func (p *Producer) PublishCouponCreated(coupon models.CouponSnapshot) error {
	return p.publishCouponEvent(models.EventTypeCouponCreated, coupon.ID, &coupon)
}

// PublishCouponUpdated публикует событие изменения купона
func (p *Producer) PublishCouponUpdated(coupon models.CouponSnapshot) error {
	return p.publishCouponEvent(models.EventTypeCouponUpdated, coupon.ID, &coupon)
}

// PublishCouponDeleted публикует событие мягкого удаления купона
func (p *Producer) PublishCouponDeleted(couponID uuid.UUID) error {
	return p.publishCouponEvent(models.EventTypeCouponDeleted, couponID, nil)
}

func (p *Producer) publishCouponEvent(eventType models.EventType, couponID uuid.UUID, coupon *models.CouponSnapshot) error {
	event := models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		CouponID:  couponID,
		Timestamp: time.Now().UTC(),
		Coupon:    coupon,
	}
	return p.publishEvent(p.topics.Coupons, event)
}

func (p *Producer) publishEvent(topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.CouponID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"coupon_id":  event.CouponID,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published to Kafka")

	return nil
}
