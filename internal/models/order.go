package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid сообщает, известен ли статус.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// CanTransitionTo проверяет допустимость перехода.
// Повтор того же статуса допускается и тоже попадает в историю.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[next] == orderStatusRank[s]+1
}

// Order представляет заказ в системе
type Order struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	CustomerID      uuid.UUID     `json:"customer_id" db:"customer_id"`
	Items           []OrderItem   `json:"items"`
	Subtotal        float64       `json:"subtotal" db:"subtotal"`
	DiscountAmount  float64       `json:"discount_amount" db:"discount_amount"`
	ShippingFee     float64       `json:"shipping_fee" db:"shipping_fee"`
	TotalAmount     float64       `json:"total_amount" db:"total_amount"`
	CouponCode      *string       `json:"coupon_code,omitempty" db:"coupon_code"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	LocationID      *uuid.UUID    `json:"location_id,omitempty" db:"location_id"`
	Status          OrderStatus   `json:"status" db:"status"`
	StatusHistory   []StatusEntry `json:"status_history"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// OrderItem представляет товар в заказе; цена фиксируется на момент покупки.
type OrderItem struct {
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
}

// LineTotal возвращает стоимость позиции.
func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// StatusEntry запись истории статусов
type StatusEntry struct {
	Status    OrderStatus `json:"status" db:"status"`
	Timestamp time.Time   `json:"timestamp" db:"created_at"`
	Note      *string     `json:"note,omitempty" db:"note"`
}

// UpdateOrderStatusRequest представляет запрос на обновление статуса заказа
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
	Note   *string     `json:"note,omitempty"`
}
