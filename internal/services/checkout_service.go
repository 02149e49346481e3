package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

const (
	metadataCouponCode = "coupon_code"
	metadataLocationID = "location_id"

	// snapshotTTL покрывает окно, в котором клиент может завершить оплату
	snapshotTTL = 72 * time.Hour
)

// CheckoutService считает стоимость корзины, создает платеж и оформляет заказ после оплаты
type CheckoutService struct {
	carts     *CartService
	snapshots Cache
	products  ProductRepository
	coupons   *CouponService
	locations LocationRepository
	orders    OrderRepository
	gateway   PaymentGateway
	events    EventPublisher
	analytics interface{ InvalidateCache(ctx context.Context) }
	log       *logger.Logger
	checkout  config.CheckoutConfig
	currency  string
	now       func() time.Time
}

// NewCheckoutService создает сервис оформления заказа
func NewCheckoutService(
	carts *CartService,
	snapshots Cache,
	products ProductRepository,
	coupons *CouponService,
	locations LocationRepository,
	orders OrderRepository,
	gateway PaymentGateway,
	events EventPublisher,
	log *logger.Logger,
	checkoutCfg *config.CheckoutConfig,
	paymentCfg *config.PaymentConfig,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		snapshots: snapshots,
		products:  products,
		coupons:   coupons,
		locations: locations,
		orders:    orders,
		gateway:   gateway,
		events:    events,
		log:       log,
		checkout:  *checkoutCfg,
		currency:  paymentCfg.Currency,
		now:       time.Now,
	}
}

// SetAnalytics подключает сброс кеша аналитики после новых заказов
func (s *CheckoutService) SetAnalytics(analytics *AnalyticsService) {
	if analytics != nil {
		s.analytics = analytics
	}
}

// PrepareCheckout считает итог по корзине, создает платежное намерение и фиксирует расчет
func (s *CheckoutService) PrepareCheckout(ctx context.Context, customerID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutQuote, error) {
	cart, err := s.carts.GetCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	quote, err := s.buildQuote(ctx, customerID, cart, req.CouponCode, req.LocationID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{}
	if quote.CouponCode != nil {
		metadata[metadataCouponCode] = *quote.CouponCode
	}
	if req.LocationID != nil {
		metadata[metadataLocationID] = req.LocationID.String()
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor:    payment.ToMinorUnits(quote.TotalAmount),
		Currency:       s.currency,
		CustomerID:     customerID.String(),
		IdempotencyKey: idempotencyKey(customerID, cart.CheckoutID, quote, req.LocationID),
		Metadata:       metadata,
	})
	if err != nil {
		return nil, err
	}

	quote.PaymentIntentID = intent.ID
	quote.ClientSecret = intent.ClientSecret
	quote.Currency = s.currency

	snapshot := models.CheckoutSnapshot{
		CustomerID: customerID,
		CheckoutID: cart.CheckoutID,
		LocationID: req.LocationID,
		Quote:      *quote,
	}
	snapshot.Quote.ClientSecret = ""
	if err := s.snapshots.Set(ctx, snapshotKey(intent.ID), snapshot, snapshotTTL); err != nil {
		return nil, fmt.Errorf("failed to store checkout snapshot: %w", err)
	}
	return quote, nil
}

// ConfirmCheckout оформляет заказ по успешному платежу. Повторный вызов возвращает тот же заказ.
func (s *CheckoutService) ConfirmCheckout(ctx context.Context, customerID uuid.UUID, req *models.CheckoutRequest) (*models.Order, error) {
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, apperror.Validation("payment_intent_id is required", nil)
	}

	if existing, err := s.existingOrder(ctx, customerID, req.PaymentIntentID); err != nil || existing != nil {
		return existing, err
	}

	intent, err := s.gateway.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata[payment.MetadataCustomerID] != customerID.String() {
		return nil, apperror.Forbidden("payment belongs to another customer", nil)
	}
	if intent.Status != models.PaymentIntentSucceeded {
		return nil, apperror.Payment(fmt.Sprintf("payment is not completed (status %s)", intent.Status), nil)
	}

	quote, locationID, err := s.paidQuote(ctx, customerID, intent)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	intentID := intent.ID
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Items:           quote.Items,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.DiscountAmount,
		ShippingFee:     quote.ShippingFee,
		TotalAmount:     quote.TotalAmount,
		CouponCode:      quote.CouponCode,
		PaymentIntentID: &intentID,
		LocationID:      locationID,
		Status:          models.OrderStatusPending,
		StatusHistory:   []models.StatusEntry{{Status: models.OrderStatusPending, Timestamp: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if !apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		// параллельное подтверждение того же платежа уже создало заказ
		existing, lookupErr := s.existingOrder(ctx, customerID, intentID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
		if order.CouponCode == nil {
			return nil, err
		}

		// купон израсходован после оплаты: заказ оформляется по оплаченной цене без погашения
		s.log.WithError(err).WithFields(map[string]interface{}{
			"payment_intent_id": intentID,
			"coupon_code":       *order.CouponCode,
		}).Warn("Coupon could not be redeemed after payment, creating order without redemption")
		order.CouponCode = nil
		if err := s.orders.Create(ctx, order); err != nil {
			return nil, err
		}
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"customer_id":  customerID,
		"total_amount": order.TotalAmount,
	}).Info("Order created successfully")

	if err := s.carts.Clear(ctx, customerID); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Warn("Failed to clear cart after checkout")
	}

	if s.analytics != nil {
		s.analytics.InvalidateCache(ctx)
	}

	if s.events != nil {
		if err := s.events.PublishOrderCreated(order); err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
		}
		if order.CouponCode != nil {
			if err := s.events.PublishCouponRedeemed(*order.CouponCode, order.ID, order.DiscountAmount); err != nil {
				s.log.WithError(err).WithField("order_id", order.ID).Error("Failed to publish coupon redeemed event")
			}
		}
	}

	return order, nil
}

// HandlePaymentWebhook проверяет вебхук шлюза и публикует событие об оплате
func (s *CheckoutService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Intent == nil {
		s.log.WithField("event_type", event.Type).Debug("Ignoring payment webhook")
		return nil
	}

	eventType := models.EventTypePaymentSucceeded
	if event.Type == payment.WebhookPaymentFailed {
		eventType = models.EventTypePaymentFailed
	}

	data := models.PaymentEventData{
		PaymentIntentID: event.Intent.ID,
		CustomerID:      event.Intent.Metadata[payment.MetadataCustomerID],
		AmountMinor:     event.Intent.AmountMinor,
		Currency:        event.Intent.Currency,
	}
	if err := s.events.PublishPaymentEvent(eventType, data); err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"payment_intent_id": data.PaymentIntentID,
		"event_type":        eventType,
	}).Info("Payment webhook processed")
	return nil
}

func (s *CheckoutService) existingOrder(ctx context.Context, customerID uuid.UUID, paymentIntentID string) (*models.Order, error) {
	order, err := s.orders.GetByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, apperror.Forbidden("payment belongs to another customer", nil)
	}
	return order, nil
}

// paidQuote возвращает расчет, по которому создан платеж. Без сохраненного снимка
// расчет повторяется по текущей корзине и должен совпасть с суммой платежа.
func (s *CheckoutService) paidQuote(ctx context.Context, customerID uuid.UUID, intent *models.PaymentIntent) (*models.CheckoutQuote, *uuid.UUID, error) {
	var snapshot models.CheckoutSnapshot
	err := s.snapshots.Get(ctx, snapshotKey(intent.ID), &snapshot)
	switch {
	case err == nil:
		if snapshot.CustomerID != customerID {
			return nil, nil, apperror.Forbidden("payment belongs to another customer", nil)
		}
		if payment.ToMinorUnits(snapshot.Quote.TotalAmount) != intent.AmountMinor {
			return nil, nil, apperror.Conflict("payment amount does not match checkout", nil)
		}
		return &snapshot.Quote, snapshot.LocationID, nil
	case errors.Is(err, redis.ErrNotFound):
		s.log.WithField("payment_intent_id", intent.ID).Warn("Checkout snapshot missing, repricing current cart")
	default:
		return nil, nil, fmt.Errorf("failed to load checkout snapshot: %w", err)
	}

	couponCode, locationID, err := checkoutParamsFromMetadata(intent.Metadata)
	if err != nil {
		return nil, nil, err
	}
	cart, err := s.carts.GetCart(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	quote, err := s.buildQuote(ctx, customerID, cart, couponCode, locationID)
	if err != nil {
		return nil, nil, err
	}
	if payment.ToMinorUnits(quote.TotalAmount) != intent.AmountMinor {
		return nil, nil, apperror.Conflict("cart changed after payment was created", nil)
	}
	return quote, locationID, nil
}

// buildQuote считает стоимость корзины по текущим ценам каталога
func (s *CheckoutService) buildQuote(ctx context.Context, customerID uuid.UUID, cart *models.Cart, couponCode *string, locationID *uuid.UUID) (*models.CheckoutQuote, error) {
	if len(cart.Items) == 0 {
		return nil, apperror.Validation("cart is empty", nil)
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	var subtotal float64
	for _, ci := range cart.Items {
		p, ok := products[ci.ProductID]
		if !ok {
			return nil, apperror.Validation(fmt.Sprintf("product %s no longer exists", ci.ProductID), nil)
		}
		if !p.IsAvailable {
			return nil, apperror.Validation(fmt.Sprintf("product %s is not available", p.Name), nil)
		}
		item := models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    ci.Quantity,
			UnitPrice:   p.Price,
		}
		subtotal += item.LineTotal()
		items = append(items, item)
	}
	subtotal = round2(subtotal)

	if locationID != nil {
		if _, err := s.locations.Get(ctx, customerID, *locationID); err != nil {
			return nil, err
		}
	}

	quote := &models.CheckoutQuote{
		Items:       items,
		Subtotal:    subtotal,
		ShippingFee: round2(s.checkout.ShippingFee),
	}

	if s.checkout.FreeShippingThreshold > 0 && subtotal >= s.checkout.FreeShippingThreshold {
		quote.ShippingFee = 0
	}

	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		verdict, err := s.coupons.Validate(ctx, *couponCode, subtotal)
		if err != nil {
			return nil, err
		}
		if !verdict.Valid {
			return nil, apperror.Validation(verdict.Reason, nil)
		}
		code := verdict.Coupon.Code
		quote.CouponCode = &code
		quote.DiscountAmount = verdict.DiscountAmount
		if verdict.Coupon.DiscountType == models.DiscountTypeFreeShipping {
			quote.ShippingFee = 0
		}
	}

	total := round2(quote.Subtotal - quote.DiscountAmount + quote.ShippingFee)
	if total < 0 {
		total = 0
	}
	quote.TotalAmount = total
	return quote, nil
}

func checkoutParamsFromMetadata(metadata map[string]string) (*string, *uuid.UUID, error) {
	var (
		couponCode *string
		locationID *uuid.UUID
	)
	if code := metadata[metadataCouponCode]; code != "" {
		couponCode = &code
	}
	if raw := metadata[metadataLocationID]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, nil, apperror.Validation("invalid location in payment metadata", err)
		}
		locationID = &id
	}
	return couponCode, locationID, nil
}

func snapshotKey(paymentIntentID string) string {
	return redis.GenerateKey(redis.KeyPrefixQuote, paymentIntentID)
}

// idempotencyKey одинаков для одной и той же корзины и параметров, поэтому повторный
// PrepareCheckout не создает второй платеж. checkoutID меняется после оформления заказа,
// так что повторная покупка того же набора получает новый платеж.
func idempotencyKey(customerID, checkoutID uuid.UUID, quote *models.CheckoutQuote, locationID *uuid.UUID) string {
	parts := make([]string, 0, len(quote.Items))
	for _, item := range quote.Items {
		parts = append(parts, fmt.Sprintf("%s:%d:%.2f", item.ProductID, item.Quantity, item.UnitPrice))
	}
	sort.Strings(parts)

	h := sha256.New()
	h.Write([]byte(customerID.String()))
	h.Write([]byte("|checkout:" + checkoutID.String() + "|"))
	h.Write([]byte(strings.Join(parts, ",")))
	if quote.CouponCode != nil {
		h.Write([]byte("|coupon:" + *quote.CouponCode))
	}
	if locationID != nil {
		h.Write([]byte("|location:" + locationID.String()))
	}
	fmt.Fprintf(h, "|total:%.2f", quote.TotalAmount)
	return "checkout-" + hex.EncodeToString(h.Sum(nil))
}
