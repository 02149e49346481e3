package handlers

import (
	"io"
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const maxWebhookBytes = 64 << 10

// CheckoutHandler обрабатывает оформление заказа и вебхуки платёжного шлюза
type CheckoutHandler struct {
	service CheckoutService
	log     *logger.Logger
}

// NewCheckoutHandler создает обработчик оформления
func NewCheckoutHandler(service CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, log: log}
}

// Prepare считает итог корзины и создаёт платёжное намерение
func (h *CheckoutHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	quote, err := h.service.PrepareCheckout(r.Context(), claims.CustomerID, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to prepare checkout")
		return
	}

	writeJSONResponse(w, http.StatusOK, quote)
}

// Confirm создаёт заказ по подтверждённому платежу
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	order, err := h.service.ConfirmCheckout(r.Context(), claims.CustomerID, req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to confirm checkout")
		return
	}

	writeJSONResponse(w, http.StatusCreated, order)
}

// Webhook принимает события Stripe; подпись проверяет сервис
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	if err := h.service.HandlePaymentWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeServiceError(w, h.log, err, "Failed to process webhook")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}

func decodeCheckoutRequest(w http.ResponseWriter, r *http.Request) (*models.CheckoutRequest, bool) {
	var req models.CheckoutRequest
	if r.ContentLength == 0 {
		return &req, true
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return &req, true
}
