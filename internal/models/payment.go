package models

import "github.com/google/uuid"

// PaymentIntentStatus статус платежного намерения
type PaymentIntentStatus string

const (
	PaymentIntentSucceeded      PaymentIntentStatus = "succeeded"
	PaymentIntentProcessing     PaymentIntentStatus = "processing"
	PaymentIntentRequiresAction PaymentIntentStatus = "requires_action"
	PaymentIntentRequiresMethod PaymentIntentStatus = "requires_payment_method"
	PaymentIntentCanceled       PaymentIntentStatus = "canceled"
)

// PaymentIntent платежное намерение в шлюзе
type PaymentIntent struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	AmountMinor  int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Status       PaymentIntentStatus `json:"status"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
}

// CheckoutRequest запрос на подготовку или подтверждение оформления
type CheckoutRequest struct {
	CouponCode      *string    `json:"coupon_code,omitempty"`
	LocationID      *uuid.UUID `json:"location_id,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
}

// CheckoutQuote расчет стоимости перед оплатой
type CheckoutQuote struct {
	Items           []OrderItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	DiscountAmount  float64     `json:"discount_amount"`
	ShippingFee     float64     `json:"shipping_fee"`
	TotalAmount     float64     `json:"total_amount"`
	CouponCode      *string     `json:"coupon_code,omitempty"`
	PaymentIntentID string      `json:"payment_intent_id"`
	ClientSecret    string      `json:"client_secret"`
	Currency        string      `json:"currency"`
}

// CheckoutSnapshot расчет, по которому создан платеж. Заказ оформляется из него, а не из текущей корзины.
type CheckoutSnapshot struct {
	CustomerID uuid.UUID     `json:"customer_id"`
	CheckoutID uuid.UUID     `json:"checkout_id"`
	LocationID *uuid.UUID    `json:"location_id,omitempty"`
	Quote      CheckoutQuote `json:"quote"`
}
