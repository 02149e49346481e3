package models

import (
	"strings"
	"time"
)

// DiscountType описывает тип купона.
type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixedAmount  DiscountType = "fixed_amount"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
)

// Coupon представляет купон в системе.
type Coupon struct {
	Code               string       `json:"code" db:"code"`
	DiscountType       DiscountType `json:"discount_type" db:"discount_type"`
	Value              float64      `json:"value" db:"value"`
	MinimumOrderAmount float64      `json:"minimum_order_amount" db:"minimum_order_amount"`
	MaximumDiscount    *float64     `json:"maximum_discount,omitempty" db:"maximum_discount"`
	UsageLimit         *int         `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageCount         int          `json:"usage_count" db:"usage_count"`
	ExpirationDate     time.Time    `json:"expiration_date" db:"expiration_date"`
	IsActive           bool         `json:"is_active" db:"is_active"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// NormalizeCouponCode приводит код к каноничному виду хранения.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponVerdict результат проверки купона. Невалидный купон это значение, а не ошибка.
type CouponVerdict struct {
	Valid          bool    `json:"valid"`
	Coupon         *Coupon `json:"coupon,omitempty"`
	DiscountAmount float64 `json:"discount_amount"`
	Reason         string  `json:"reason,omitempty"`
}

// Причины отказа в купоне
const (
	CouponReasonNotFound      = "coupon not found"
	CouponReasonInactive      = "coupon inactive"
	CouponReasonExpired       = "coupon expired"
	CouponReasonUsageLimit    = "usage limit reached"
	CouponReasonMinimumNotMet = "minimum order amount not met"
)

// CreateCouponRequest описывает запрос на создание купона.
type CreateCouponRequest struct {
	Code               string       `json:"code"`
	DiscountType       DiscountType `json:"discount_type"`
	Value              float64      `json:"value"`
	MinimumOrderAmount float64      `json:"minimum_order_amount"`
	MaximumDiscount    *float64     `json:"maximum_discount,omitempty"`
	UsageLimit         *int         `json:"usage_limit,omitempty"`
	ExpirationDate     time.Time    `json:"expiration_date"`
	IsActive           bool         `json:"is_active"`
}

// UpdateCouponRequest описывает запрос на обновление купона.
type UpdateCouponRequest struct {
	DiscountType       DiscountType `json:"discount_type"`
	Value              float64      `json:"value"`
	MinimumOrderAmount float64      `json:"minimum_order_amount"`
	MaximumDiscount    *float64     `json:"maximum_discount,omitempty"`
	UsageLimit         *int         `json:"usage_limit,omitempty"`
	ExpirationDate     time.Time    `json:"expiration_date"`
	IsActive           bool         `json:"is_active"`
}

// ValidateCouponRequest запрос на проверку купона против суммы заказа.
type ValidateCouponRequest struct {
	Code        string  `json:"code"`
	OrderAmount float64 `json:"order_amount"`
}
