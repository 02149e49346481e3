package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const cartItemsPrefix = "/api/cart/items/"

// CartHandler обрабатывает корзину текущего покупателя
type CartHandler struct {
	service CartService
	log     *logger.Logger
}

// NewCartHandler создает обработчик корзины
func NewCartHandler(service CartService, log *logger.Logger) *CartHandler {
	return &CartHandler{service: service, log: log}
}

// Cart: GET содержимое корзины, DELETE очистка
func (h *CartHandler) Cart(w http.ResponseWriter, r *http.Request) {
	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		cart, err := h.service.GetCart(r.Context(), claims.CustomerID)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to load cart")
			return
		}
		writeJSONResponse(w, http.StatusOK, cart)
	case http.MethodDelete:
		if err := h.service.Clear(r.Context(), claims.CustomerID); err != nil {
			writeServiceError(w, h.log, err, "Failed to clear cart")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Items: POST добавляет количество к позиции, PUT задаёт его
func (h *CartHandler) Items(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	var req models.CartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		cart *models.Cart
		err  error
	)
	if r.Method == http.MethodPost {
		cart, err = h.service.AddItem(r.Context(), claims.CustomerID, &req)
	} else {
		cart, err = h.service.SetQuantity(r.Context(), claims.CustomerID, &req)
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update cart")
		return
	}

	writeJSONResponse(w, http.StatusOK, cart)
}

// RemoveItem удаляет товар из корзины
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	productID, err := extractUUIDFromPath(r.URL.Path, cartItemsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), claims.CustomerID, productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update cart")
		return
	}

	writeJSONResponse(w, http.StatusOK, cart)
}
