package payment

import (
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/stripe/stripe-go/v83"
)

func newTestGateway(secret string) *StripeGateway {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	return NewStripeGateway(&config.PaymentConfig{StripeSecretKey: "sk_test_x", StripeWebhookSecret: secret}, log)
}

func TestToMinorUnits(t *testing.T) {
	cases := map[float64]int64{
		10:     1000,
		19.99:  1999,
		0.015:  2,
		104.99: 10499,
	}
	for in, want := range cases {
		if got := ToMinorUnits(in); got != want {
			t.Fatalf("ToMinorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestIntentToModel(t *testing.T) {
	pi := &stripe.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "secret",
		Amount:       2500,
		Currency:     stripe.CurrencyUSD,
		Status:       stripe.PaymentIntentStatusSucceeded,
		Metadata:     map[string]string{MetadataCustomerID: "c1"},
	}
	m := intentToModel(pi)
	if m.ID != "pi_1" || m.AmountMinor != 2500 || m.Currency != "usd" || m.Status != models.PaymentIntentSucceeded {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if m.Metadata[MetadataCustomerID] != "c1" {
		t.Fatalf("metadata lost")
	}
}

func TestParseWebhook_UnsignedPaymentSucceeded(t *testing.T) {
	g := newTestGateway("")
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount":1000,"currency":"usd","status":"succeeded","metadata":{"customer_id":"abc"}}}}`)

	ev, err := g.ParseWebhook(payload, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != WebhookPaymentSucceeded || ev.Intent == nil || ev.Intent.ID != "pi_1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Intent.Metadata[MetadataCustomerID] != "abc" {
		t.Fatalf("metadata not parsed: %+v", ev.Intent)
	}
}

func TestParseWebhook_IgnoresOtherTypes(t *testing.T) {
	g := newTestGateway("")
	ev, err := g.ParseWebhook([]byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Intent != nil {
		t.Fatalf("expected no intent for unrelated event")
	}
}

func TestParseWebhook_BadSignature(t *testing.T) {
	g := newTestGateway("whsec_test")
	_, err := g.ParseWebhook([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	if !apperror.Is(err, apperror.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestParseWebhook_InvalidJSON(t *testing.T) {
	g := newTestGateway("")
	_, err := g.ParseWebhook([]byte(`not json`), "")
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
