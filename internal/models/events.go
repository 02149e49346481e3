package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType тип доменного события
type EventType string

const (
	EventTypeOrderCreated          EventType = "order.created"
	EventTypeOrderStatusChanged    EventType = "order.status_changed"
	EventTypeCouponRedeemed        EventType = "coupon.redeemed"
	EventTypePaymentSucceeded      EventType = "payment.succeeded"
	EventTypePaymentFailed         EventType = "payment.failed"
	EventTypeNotificationRequested EventType = "notification.requested"
)

// Event конверт события Kafka; Data содержит payload конкретного типа.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent создает событие с сериализованным payload.
func NewEvent(eventType EventType, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// DecodeData разбирает payload события.
func (e *Event) DecodeData(dest interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.ID)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// OrderCreatedData payload order.created
type OrderCreatedData struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TotalAmount float64   `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
}

// OrderStatusChangedData payload order.status_changed
type OrderStatusChangedData struct {
	OrderID    uuid.UUID   `json:"order_id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	OldStatus  OrderStatus `json:"old_status"`
	NewStatus  OrderStatus `json:"new_status"`
}

// CouponRedeemedData payload coupon.redeemed
type CouponRedeemedData struct {
	Code     string    `json:"code"`
	OrderID  uuid.UUID `json:"order_id"`
	Discount float64   `json:"discount"`
}

// PaymentEventData payload payment.*
type PaymentEventData struct {
	PaymentIntentID string `json:"payment_intent_id"`
	CustomerID      string `json:"customer_id,omitempty"`
	AmountMinor     int64  `json:"amount"`
	Currency        string `json:"currency"`
	FailureMessage  string `json:"failure_message,omitempty"`
}

// NotificationData payload notification.requested
type NotificationData struct {
	CustomerID uuid.UUID         `json:"customer_id"`
	Tokens     []string          `json:"tokens"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}
