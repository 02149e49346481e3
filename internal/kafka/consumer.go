package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/IBM/sarama"
)

// EventHandler обрабатывает событие определенного типа
type EventHandler func(ctx context.Context, event *models.Event) error

// Consumer читает события из Kafka в составе consumer group
type Consumer struct {
	consumer sarama.ConsumerGroup
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	topics   []string
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewConsumer создает consumer group, подписанную на топики заказов и платежей
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Net.DialTimeout = 5 * time.Second

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	var topics []string
	for _, topic := range []string{cfg.Topics.Orders, cfg.Topics.Payments} {
		if topic != "" {
			topics = append(topics, topic)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.WithFields(map[string]interface{}{
		"group_id": cfg.GroupID,
		"topics":   topics,
	}).Info("Kafka consumer created")

	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   topics,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// NewTestConsumer создает потребителя поверх произвольной группы (для тестов)
func NewTestConsumer(group sarama.ConsumerGroup, log *logger.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{"orders"},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler регистрирует обработчик для типа события
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// Handler возвращает обработчик для типа события
func (c *Consumer) Handler(eventType models.EventType) EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[eventType]
}

// HandlerCount возвращает число зарегистрированных обработчиков
func (c *Consumer) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Start запускает цикл потребления в фоне
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil && !errors.Is(err, context.Canceled) {
				c.log.WithError(err).Error("Kafka consume error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.log.WithField("topics", c.topics).Info("Kafka consumer started")
	return nil
}

// Stop останавливает потребление и закрывает группу
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.consumer == nil {
		return nil
	}
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	c.log.Info("Kafka consumer stopped")
	return nil
}

// Setup вызывается sarama перед началом сессии
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается sarama по завершении сессии
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim читает сообщения партиции до закрытия канала
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.processMessage(msg); err != nil {
				c.log.WithError(err).WithFields(map[string]interface{}{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Error("Failed to process Kafka message")
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	handler := c.Handler(event.Type)
	if handler == nil {
		c.log.WithField("event_type", event.Type).Debug("No handler registered for event type")
		return nil
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := handler(ctx, &event); err != nil {
		return fmt.Errorf("handler for %s failed: %w", event.Type, err)
	}
	return nil
}
