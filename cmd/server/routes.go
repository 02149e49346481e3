package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"storefront/internal/handlers"
	"storefront/internal/logger"
)

// routeHandlers собранные HTTP-обработчики
type routeHandlers struct {
	products     *handlers.ProductHandler
	cart         *handlers.CartHandler
	checkout     *handlers.CheckoutHandler
	orders       *handlers.OrderHandler
	coupons      *handlers.CouponHandler
	analytics    *handlers.AnalyticsHandler
	customers    *handlers.CustomerHandler
	gamification *handlers.GamificationHandler
	health       *handlers.HealthHandler
	rateLimit    *handlers.RateLimitHandler
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h *routeHandlers, tokens handlers.TokenValidator, rateLimiter handlers.MiddlewareLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// аутентификация идёт раньше лимита, чтобы лимит считался по покупателю
	applyAPI := func(next http.HandlerFunc) http.HandlerFunc {
		limited := handlers.RateLimitMiddleware(rateLimiter, log, next)
		return corsMiddleware(handlers.Authenticate(tokens, log, limited).ServeHTTP)
	}
	customer := func(next http.HandlerFunc) http.HandlerFunc { return applyAPI(handlers.RequireCustomer(next)) }
	admin := func(next http.HandlerFunc) http.HandlerFunc { return applyAPI(handlers.RequireAdmin(next)) }

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(h.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(h.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(h.health.Liveness))

	// Catalog
	mux.HandleFunc("/api/products", applyAPI(handleProductsRoute(h.products)))
	mux.HandleFunc("/api/products/", applyAPI(handleProductRoute(h.products)))

	// Cart & checkout
	mux.HandleFunc("/api/cart", customer(h.cart.Cart))
	mux.HandleFunc("/api/cart/items", customer(h.cart.Items))
	mux.HandleFunc("/api/cart/items/", customer(h.cart.RemoveItem))
	mux.HandleFunc("/api/checkout/prepare", customer(h.checkout.Prepare))
	mux.HandleFunc("/api/checkout/confirm", customer(h.checkout.Confirm))
	mux.HandleFunc("/api/webhooks/stripe", h.checkout.Webhook)

	// Orders
	mux.HandleFunc("/api/orders", customer(h.orders.ListMyOrders))
	mux.HandleFunc("/api/orders/", customer(handleOrderRoute(h.orders)))

	// Coupons
	mux.HandleFunc("/api/coupons", admin(handleCouponsRoute(h.coupons)))
	mux.HandleFunc("/api/coupons/validate", applyAPI(h.coupons.Validate))
	mux.HandleFunc("/api/coupons/", admin(h.coupons.Coupon))

	// Analytics
	mux.HandleFunc("/api/analytics/dashboard", admin(h.analytics.GetDashboard))

	// Customers
	mux.HandleFunc("/api/customers", applyAPI(h.customers.Register))
	mux.HandleFunc("/api/me", customer(h.customers.Profile))
	mux.HandleFunc("/api/me/locations", customer(h.customers.Locations))
	mux.HandleFunc("/api/me/locations/", customer(h.customers.Location))
	mux.HandleFunc("/api/me/favorites", customer(h.customers.Favorites))
	mux.HandleFunc("/api/me/favorites/", customer(h.customers.Favorite))
	mux.HandleFunc("/api/me/devices", customer(h.customers.RegisterDevice))
	mux.HandleFunc("/api/me/devices/", customer(h.customers.UnregisterDevice))

	// Gamification
	mux.HandleFunc("/api/leaderboard", applyAPI(h.gamification.Leaderboard))
	mux.HandleFunc("/api/leaderboard/me", customer(h.gamification.MyRank))
	mux.HandleFunc("/api/spin", customer(h.gamification.Spin))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(h.rateLimit.Status))

	return mux
}

// handleProductsRoute обрабатывает коллекцию товаров
func handleProductsRoute(handler *handlers.ProductHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListProducts(w, r)
		case http.MethodPost:
			handlers.RequireAdmin(handler.CreateProduct)(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleProductRoute обрабатывает отдельный товар и его вложенные ресурсы
func handleProductRoute(handler *handlers.ProductHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/image"):
			handler.Image(w, r)
		case strings.HasSuffix(r.URL.Path, "/reviews"):
			handler.Reviews(w, r)
		case strings.HasSuffix(r.URL.Path, "/rating"):
			handler.Rating(w, r)
		default:
			handler.GetProduct(w, r)
		}
	}
}

// handleOrderRoute обрабатывает маршруты для отдельного заказа
func handleOrderRoute(handler *handlers.OrderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			handlers.RequireAdmin(handler.UpdateOrderStatus)(w, r)
		case strings.HasSuffix(r.URL.Path, "/track"):
			handler.TrackOrder(w, r)
		default:
			handler.GetOrder(w, r)
		}
	}
}

// handleCouponsRoute обрабатывает коллекцию купонов
func handleCouponsRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListCoupons(w, r)
		case http.MethodPost:
			handler.CreateCoupon(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
