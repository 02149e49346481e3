package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	couponsPrefix     = "/api/coupons/"
	maxCouponCodeSize = 64
)

// CouponHandler обрабатывает купоны.
type CouponHandler struct {
	service CouponService
	log     *logger.Logger
}

// NewCouponHandler создаёт новый обработчик купонов.
func NewCouponHandler(service CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		log:     log,
	}
}

// Validate проверяет купон против суммы заказа и возвращает вердикт.
// Невалидный купон это 200 с valid=false и причиной.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ValidateCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderAmount < 0 {
		writeErrorResponse(w, http.StatusBadRequest, "order_amount must be non-negative")
		return
	}

	verdict, err := h.service.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to validate coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, verdict)
}

// CreateCoupon создаёт купон.
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Code) > maxCouponCodeSize {
		writeErrorResponse(w, http.StatusBadRequest, "coupon code is too long")
		return
	}

	coupon, err := h.service.CreateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// ListCoupons возвращает список купонов.
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePagination(r)
	coupons, err := h.service.ListCoupons(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// Coupon: GET, PUT, DELETE одного купона по коду
func (h *CouponHandler) Coupon(w http.ResponseWriter, r *http.Request) {
	code, err := extractCouponCodeFromPath(r.URL.EscapedPath())
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		coupon, err := h.service.GetCoupon(r.Context(), code)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get coupon")
			return
		}
		writeJSONResponse(w, http.StatusOK, coupon)
	case http.MethodPut:
		var req models.UpdateCouponRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		coupon, err := h.service.UpdateCoupon(r.Context(), code, &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to update coupon")
			return
		}
		writeJSONResponse(w, http.StatusOK, coupon)
	case http.MethodDelete:
		if err := h.service.DeleteCoupon(r.Context(), code); err != nil {
			writeServiceError(w, h.log, err, "Failed to delete coupon")
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Coupon deleted"})
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func extractCouponCodeFromPath(path string) (string, error) {
	if !strings.HasPrefix(path, couponsPrefix) {
		return "", fmt.Errorf("invalid path format")
	}
	raw := extractSegment(path, couponsPrefix)
	code, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid coupon code")
	}
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return "", fmt.Errorf("coupon code is required")
	}
	if len(code) > maxCouponCodeSize {
		return "", fmt.Errorf("coupon code is too long")
	}
	return code, nil
}
