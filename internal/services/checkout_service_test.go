package services

import (
	"context"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/payment"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type checkoutFixture struct {
	svc       *CheckoutService
	carts     *CartService
	products  *fakeProductRepo
	coupons   *fakeCouponRepo
	locations *fakeLocationRepo
	orders    *fakeOrderRepo
	gateway   *fakeGateway
	events    *fakeEvents
	redis     *miniredis.Miniredis
	apple     models.Product
	customer  uuid.UUID
}

func newCheckoutFixture(t *testing.T, checkoutCfg config.CheckoutConfig) *checkoutFixture {
	t.Helper()
	cache, mr := newTestRedis(t)
	log := newTestLogger()

	f := &checkoutFixture{
		redis:     mr,
		products:  newFakeProductRepo(),
		coupons:   newFakeCouponRepo(),
		locations: newFakeLocationRepo(),
		orders:    newFakeOrderRepo(),
		gateway:   newFakeGateway(),
		events:    &fakeEvents{},
		apple:     testProduct("apple", "fruit", 12.5),
		customer:  uuid.New(),
	}
	f.products.products = append(f.products.products, f.apple)
	f.carts = NewCartService(cache, f.products, log)
	f.svc = NewCheckoutService(
		f.carts,
		cache,
		f.products,
		NewCouponService(f.coupons, log),
		f.locations,
		f.orders,
		f.gateway,
		f.events,
		log,
		&checkoutCfg,
		&config.PaymentConfig{Currency: "usd"},
	)
	return f
}

func (f *checkoutFixture) addApples(t *testing.T, qty int) {
	t.Helper()
	if _, err := f.carts.AddItem(context.Background(), f.customer, &models.CartItemRequest{ProductID: f.apple.ID, Quantity: qty}); err != nil {
		t.Fatalf("failed to fill cart: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestCheckout_PrepareQuoteWithShipping(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 4.99})
	f.addApples(t, 2)

	quote, err := f.svc.PrepareCheckout(context.Background(), f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Subtotal != 25 || quote.ShippingFee != 4.99 || quote.TotalAmount != 29.99 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if quote.PaymentIntentID == "" || quote.ClientSecret == "" || quote.Currency != "usd" {
		t.Fatalf("quote missing payment data %+v", quote)
	}
	if len(f.gateway.requests) != 1 || f.gateway.requests[0].AmountMinor != 2999 {
		t.Fatalf("unexpected intent request %+v", f.gateway.requests)
	}
}

func TestCheckout_PrepareSameCartSameIdempotencyKey(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 1})
	f.addApples(t, 1)
	ctx := context.Background()

	if _, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.addApples(t, 1)
	if _, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := f.gateway.requests
	if keys[0].IdempotencyKey != keys[1].IdempotencyKey {
		t.Fatalf("same cart must reuse idempotency key")
	}
	if keys[1].IdempotencyKey == keys[2].IdempotencyKey {
		t.Fatalf("changed cart must get a new idempotency key")
	}
}

func TestCheckout_FreeShippingThresholdAndCoupon(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 5, FreeShippingThreshold: 50})
	f.addApples(t, 4)

	quote, err := f.svc.PrepareCheckout(context.Background(), f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.ShippingFee != 0 || quote.TotalAmount != 50 {
		t.Fatalf("expected shipping waived at threshold, got %+v", quote)
	}

	f2 := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 5})
	f2.coupons.coupons["SHIPFREE"] = &models.Coupon{
		Code: "SHIPFREE", DiscountType: models.DiscountTypeFreeShipping,
		ExpirationDate: time.Now().Add(time.Hour), IsActive: true,
	}
	f2.addApples(t, 1)
	quote, err = f2.svc.PrepareCheckout(context.Background(), f2.customer, &models.CheckoutRequest{CouponCode: strPtr("shipfree")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.ShippingFee != 0 || quote.DiscountAmount != 0 || quote.TotalAmount != 12.5 {
		t.Fatalf("expected free shipping coupon to waive fee, got %+v", quote)
	}
	if quote.CouponCode == nil || *quote.CouponCode != "SHIPFREE" {
		t.Fatalf("expected normalized coupon code on quote")
	}
}

func TestCheckout_PrepareRejections(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 5})
	ctx := context.Background()

	if _, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}

	f.addApples(t, 1)
	_, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{CouponCode: strPtr("MISSING")})
	if !apperror.Is(err, apperror.KindValidation) || err.Error() != models.CouponReasonNotFound {
		t.Fatalf("expected coupon reason as validation error, got %v", err)
	}

	foreign := uuid.New()
	_, err = f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{LocationID: &foreign})
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found for unknown location, got %v", err)
	}

	f.products.products[0].IsAvailable = false
	if _, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for unavailable product, got %v", err)
	}
}

func TestCheckout_ConfirmCreatesOrderOnce(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 2})
	f.coupons.coupons["TEN"] = &models.Coupon{
		Code: "TEN", DiscountType: models.DiscountTypeFixedAmount, Value: 10,
		ExpirationDate: time.Now().Add(time.Hour), IsActive: true,
	}
	f.addApples(t, 2)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{CouponCode: strPtr("ten")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.TotalAmount != 17 {
		t.Fatalf("expected 25 - 10 + 2 = 17, got %v", quote.TotalAmount)
	}

	req := &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID}
	if _, err := f.svc.ConfirmCheckout(ctx, f.customer, req); !apperror.Is(err, apperror.KindPayment) {
		t.Fatalf("expected payment error before intent succeeded, got %v", err)
	}

	f.gateway.succeed(quote.PaymentIntentID)
	order, err := f.svc.ConfirmCheckout(ctx, f.customer, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != models.OrderStatusPending || len(order.StatusHistory) != 1 {
		t.Fatalf("unexpected order state %+v", order)
	}
	if order.TotalAmount != 17 || order.DiscountAmount != 10 || order.CouponCode == nil || *order.CouponCode != "TEN" {
		t.Fatalf("unexpected order amounts %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != 12.5 {
		t.Fatalf("expected price snapshot on items, got %+v", order.Items)
	}

	cart, _ := f.carts.GetCart(ctx, f.customer)
	if len(cart.Items) != 0 {
		t.Fatalf("expected cart cleared after checkout")
	}
	if len(f.events.created) != 1 || len(f.events.redeemed) != 1 {
		t.Fatalf("expected order.created and coupon.redeemed, got %+v", f.events)
	}

	again, err := f.svc.ConfirmCheckout(ctx, f.customer, req)
	if err != nil {
		t.Fatalf("repeat confirm should succeed: %v", err)
	}
	if again.ID != order.ID || len(f.orders.orders) != 1 {
		t.Fatalf("repeat confirm must return the same order")
	}
	if len(f.events.created) != 1 {
		t.Fatalf("repeat confirm must not publish again")
	}
}

func TestCheckout_ConfirmForeignIntentForbidden(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	f.addApples(t, 1)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.gateway.succeed(quote.PaymentIntentID)

	_, err = f.svc.ConfirmCheckout(ctx, uuid.New(), &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
	if !apperror.Is(err, apperror.KindForbidden) {
		t.Fatalf("expected forbidden for foreign intent, got %v", err)
	}
}

func TestCheckout_ConfirmUsesPaidSnapshotAfterCartEdit(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	f.addApples(t, 1)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.gateway.succeed(quote.PaymentIntentID)
	f.addApples(t, 3)
	f.products.products[0].Price = 99

	order, err := f.svc.ConfirmCheckout(ctx, f.customer, &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
	if err != nil {
		t.Fatalf("paid order must be created: %v", err)
	}
	if order.TotalAmount != 12.5 || len(order.Items) != 1 || order.Items[0].Quantity != 1 || order.Items[0].UnitPrice != 12.5 {
		t.Fatalf("expected order from the paid quote, got %+v", order)
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(f.orders.orders))
	}
}

func TestCheckout_ConfirmWithoutSnapshotRepricesCart(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	f.addApples(t, 1)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.gateway.succeed(quote.PaymentIntentID)
	f.redis.Del(snapshotKey(quote.PaymentIntentID))
	f.addApples(t, 1)

	_, err = f.svc.ConfirmCheckout(ctx, f.customer, &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict when cart changed and no snapshot, got %v", err)
	}
	if len(f.orders.orders) != 0 {
		t.Fatalf("no order must be created")
	}
}

func TestCheckout_RepeatPurchaseOfSameBasketCreatesNewOrder(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{ShippingFee: 1})
	ctx := context.Background()

	buy := func() *models.Order {
		t.Helper()
		f.addApples(t, 2)
		quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{})
		if err != nil {
			t.Fatalf("prepare failed: %v", err)
		}
		f.gateway.succeed(quote.PaymentIntentID)
		order, err := f.svc.ConfirmCheckout(ctx, f.customer, &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
		if err != nil {
			t.Fatalf("confirm failed: %v", err)
		}
		return order
	}

	first := buy()
	second := buy()

	if len(f.gateway.requests) != 2 || f.gateway.requests[0].IdempotencyKey == f.gateway.requests[1].IdempotencyKey {
		t.Fatalf("repeat purchase must use a new idempotency key: %+v", f.gateway.requests)
	}
	if first.ID == second.ID || *first.PaymentIntentID == *second.PaymentIntentID {
		t.Fatalf("expected a second order with its own payment")
	}
	if len(f.orders.orders) != 2 {
		t.Fatalf("expected two orders, got %d", len(f.orders.orders))
	}
	cart, _ := f.carts.GetCart(ctx, f.customer)
	if len(cart.Items) != 0 {
		t.Fatalf("expected cart cleared after the second purchase")
	}
}

func TestCheckout_ConfirmCouponExhaustedAfterPaymentStillCreatesOrder(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	f.coupons.coupons["TEN"] = &models.Coupon{
		Code: "TEN", DiscountType: models.DiscountTypeFixedAmount, Value: 10,
		ExpirationDate: time.Now().Add(time.Hour), IsActive: true,
	}
	f.addApples(t, 2)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{CouponCode: strPtr("TEN")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.gateway.succeed(quote.PaymentIntentID)
	f.coupons.coupons["TEN"].IsActive = false
	f.orders.couponErr = apperror.Conflict(models.CouponReasonUsageLimit, nil)

	order, err := f.svc.ConfirmCheckout(ctx, f.customer, &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
	if err != nil {
		t.Fatalf("paid order must be created: %v", err)
	}
	if order.CouponCode != nil || order.TotalAmount != 15 || order.DiscountAmount != 10 {
		t.Fatalf("expected paid amounts without redemption, got %+v", order)
	}
	if len(f.orders.orders) != 1 || len(f.events.redeemed) != 0 {
		t.Fatalf("expected one order and no redemption event, got %d orders %v", len(f.orders.orders), f.events.redeemed)
	}
}

func TestCheckout_ConfirmRedemptionConflictKeepsCart(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	f.addApples(t, 1)
	ctx := context.Background()

	quote, err := f.svc.PrepareCheckout(ctx, f.customer, &models.CheckoutRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.gateway.succeed(quote.PaymentIntentID)
	f.orders.createErr = apperror.Conflict(models.CouponReasonUsageLimit, nil)

	_, err = f.svc.ConfirmCheckout(ctx, f.customer, &models.CheckoutRequest{PaymentIntentID: quote.PaymentIntentID})
	if !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	cart, _ := f.carts.GetCart(ctx, f.customer)
	if len(cart.Items) != 1 {
		t.Fatalf("cart must survive a failed order")
	}
	if len(f.events.created) != 0 {
		t.Fatalf("no event expected for failed order")
	}
}

func TestCheckout_ConfirmRequiresIntentID(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	if _, err := f.svc.ConfirmCheckout(context.Background(), f.customer, &models.CheckoutRequest{}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckout_HandlePaymentWebhook(t *testing.T) {
	f := newCheckoutFixture(t, config.CheckoutConfig{})
	ctx := context.Background()

	f.gateway.webhook = &payment.WebhookEvent{
		ID:   "evt_1",
		Type: payment.WebhookPaymentFailed,
		Intent: &models.PaymentIntent{
			ID:       "pi_1",
			Currency: "usd",
			Metadata: map[string]string{payment.MetadataCustomerID: f.customer.String()},
		},
	}
	if err := f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "sig"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.events.payments) != 1 || f.events.payments[0] != models.EventTypePaymentFailed {
		t.Fatalf("expected payment.failed event, got %v", f.events.payments)
	}

	f.gateway.webhook = &payment.WebhookEvent{ID: "evt_2", Type: "customer.created"}
	if err := f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "sig"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.events.payments) != 1 {
		t.Fatalf("unrelated webhook must be ignored")
	}

	f.gateway.parseErr = apperror.Unauthorized("invalid webhook signature", nil)
	if err := f.svc.HandlePaymentWebhook(ctx, []byte("{}"), "bad"); !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("expected signature error, got %v", err)
	}
}
