// Package tracking будит подписчиков заказа при смене его статуса.
package tracking

import (
	"context"
	"sync"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// Hub локальная для процесса шина уведомлений по заказам
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[int]chan struct{}
	nextID int
	log    *logger.Logger
}

// NewHub создает хаб
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]map[int]chan struct{}),
		log:  log,
	}
}

// Subscribe возвращает канал пробуждений и функцию отписки.
// Пробуждения схлопываются: подписчик видит не больше одного непрочитанного сигнала.
func (h *Hub) Subscribe(orderID uuid.UUID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[orderID] == nil {
		h.subs[orderID] = make(map[int]chan struct{})
	}
	h.subs[orderID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[orderID], id)
			if len(h.subs[orderID]) == 0 {
				delete(h.subs, orderID)
			}
		})
	}
}

// Notify будит всех подписчиков заказа
func (h *Hub) Notify(orderID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[orderID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers количество подписчиков заказа
func (h *Hub) Subscribers(orderID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orderID])
}

// HandleStatusChanged обработчик Kafka-события order.status_changed
func (h *Hub) HandleStatusChanged(ctx context.Context, event *models.Event) error {
	var data models.OrderStatusChangedData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	h.Notify(data.OrderID)
	if h.log != nil {
		h.log.WithFields(map[string]interface{}{
			"order_id":   data.OrderID,
			"new_status": data.NewStatus,
		}).Debug("Order tracking subscribers notified")
	}
	return nil
}
