package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Idempotent = false
	saramaCfg.Net.DialTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishOrderCreated публикует событие создания заказа
func (p *Producer) PublishOrderCreated(order *models.Order) error {
	event, err := models.NewEvent(models.EventTypeOrderCreated, models.OrderCreatedData{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
	})
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Orders, order.ID.String(), event)
}

// PublishOrderStatusChanged публикует смену статуса заказа
func (p *Producer) PublishOrderStatusChanged(orderID, customerID uuid.UUID, oldStatus, newStatus models.OrderStatus) error {
	event, err := models.NewEvent(models.EventTypeOrderStatusChanged, models.OrderStatusChangedData{
		OrderID:    orderID,
		CustomerID: customerID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
	})
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Orders, orderID.String(), event)
}

// PublishCouponRedeemed публикует погашение купона
func (p *Producer) PublishCouponRedeemed(code string, orderID uuid.UUID, discount float64) error {
	event, err := models.NewEvent(models.EventTypeCouponRedeemed, models.CouponRedeemedData{
		Code:     code,
		OrderID:  orderID,
		Discount: discount,
	})
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Coupons, code, event)
}

// PublishPaymentEvent публикует результат платежа, полученный из вебхука
func (p *Producer) PublishPaymentEvent(eventType models.EventType, data models.PaymentEventData) error {
	event, err := models.NewEvent(eventType, data)
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Payments, data.PaymentIntentID, event)
}

// PublishNotification публикует запрос на push-уведомление
func (p *Producer) PublishNotification(data models.NotificationData) error {
	event, err := models.NewEvent(models.EventTypeNotificationRequested, data)
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Notifications, data.CustomerID.String(), event)
}

// publishEvent отправляет событие с ключом по ID события
func (p *Producer) publishEvent(topic string, event models.Event) error {
	return p.publishKeyed(topic, event.ID.String(), event)
}

func (p *Producer) publishKeyed(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.WithError(err).WithFields(map[string]interface{}{
			"topic":      topic,
			"event_type": event.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"event_type": event.Type,
		"event_id":   event.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}
