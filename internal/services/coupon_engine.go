package services

import (
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// EvaluateCoupon проверяет купон против суммы заказа и считает скидку.
// Проверки идут по порядку, первая неудачная определяет причину. Ошибок не возвращает.
func EvaluateCoupon(c *models.Coupon, orderAmount float64, now time.Time) models.CouponVerdict {
	if c == nil {
		return invalidVerdict(models.CouponReasonNotFound)
	}
	if !c.IsActive {
		return invalidVerdict(models.CouponReasonInactive)
	}
	if now.After(c.ExpirationDate) {
		return invalidVerdict(models.CouponReasonExpired)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return invalidVerdict(models.CouponReasonUsageLimit)
	}
	if orderAmount < c.MinimumOrderAmount {
		return invalidVerdict(models.CouponReasonMinimumNotMet)
	}

	return models.CouponVerdict{
		Valid:          true,
		Coupon:         c,
		DiscountAmount: CalculateDiscount(c, orderAmount),
	}
}

// CalculateDiscount сумма скидки для валидного купона, округленная до центов
func CalculateDiscount(c *models.Coupon, orderAmount float64) float64 {
	amount := decimal.NewFromFloat(orderAmount)
	value := decimal.NewFromFloat(c.Value)

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountTypePercentage:
		discount = amount.Mul(value).Div(decimal.NewFromInt(100))
		if c.MaximumDiscount != nil {
			discount = decimal.Min(discount, decimal.NewFromFloat(*c.MaximumDiscount))
		}
	case models.DiscountTypeFixedAmount:
		discount = decimal.Min(value, amount)
	default:
		// free_shipping: стоимость доставки списывается при оформлении
		discount = decimal.Zero
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2).InexactFloat64()
}

func invalidVerdict(reason string) models.CouponVerdict {
	return models.CouponVerdict{Valid: false, Reason: reason}
}

// round2 округляет деньги до центов от нуля
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
