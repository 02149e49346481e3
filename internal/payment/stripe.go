// Package payment обращается к платежному шлюзу Stripe.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Типы событий вебхука, которые мы обрабатываем
const (
	WebhookPaymentSucceeded = "payment_intent.succeeded"
	WebhookPaymentFailed    = "payment_intent.payment_failed"
)

// MetadataCustomerID ключ метаданных с ID покупателя
const MetadataCustomerID = "customer_id"

// IntentRequest параметры создания платежного намерения
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	CustomerID     string
	IdempotencyKey string
	Metadata       map[string]string
}

// WebhookEvent разобранное событие вебхука
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *models.PaymentIntent
}

// Gateway контракт платежного шлюза
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeGateway реализация Gateway поверх stripe-go
type StripeGateway struct {
	webhookSecret string
	log           *logger.Logger
}

// NewStripeGateway настраивает ключ Stripe
func NewStripeGateway(cfg *config.PaymentConfig, log *logger.Logger) *StripeGateway {
	stripe.Key = cfg.StripeSecretKey
	if cfg.StripeSecretKey == "" {
		log.Warn("Stripe secret key is not configured, payment calls will fail")
	}
	return &StripeGateway{
		webhookSecret: cfg.StripeWebhookSecret,
		log:           log,
	}
}

// CreateIntent создает PaymentIntent с ключом идемпотентности
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*models.PaymentIntent, error) {
	if req.AmountMinor <= 0 {
		return nil, apperror.Validation("payment amount must be positive", nil)
	}

	metadata := map[string]string{MetadataCustomerID: req.CustomerID}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata,
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, wrapStripeError("failed to create payment intent", err)
	}

	g.log.WithFields(map[string]interface{}{
		"payment_intent_id": intent.ID,
		"amount":            intent.Amount,
		"customer_id":       req.CustomerID,
	}).Info("Payment intent created")

	return intentToModel(intent), nil
}

// GetIntent получает PaymentIntent по ID
func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, wrapStripeError("failed to retrieve payment intent", err)
	}
	return intentToModel(intent), nil
}

// ParseWebhook проверяет подпись (если задан секрет) и разбирает событие.
// Без секрета payload принимается как есть; это режим локальной разработки.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var event stripe.Event

	if g.webhookSecret == "" {
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, apperror.Validation("invalid webhook payload", err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, apperror.Unauthorized("invalid webhook signature", err)
		}
	}

	result := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if result.Type != WebhookPaymentSucceeded && result.Type != WebhookPaymentFailed {
		return result, nil
	}
	if event.Data == nil {
		return nil, apperror.Validation("webhook event has no data", nil)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, apperror.Validation("invalid payment intent in webhook", err)
	}
	result.Intent = intentToModel(&intent)
	return result, nil
}

func intentToModel(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       models.PaymentIntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func wrapStripeError(msg string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.HTTPStatusCode {
		case 400, 402:
			return apperror.Payment(stripeErr.Msg, err)
		case 404:
			return apperror.NotFound("payment intent not found", err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// ToMinorUnits переводит сумму в центы с округлением от нуля
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
