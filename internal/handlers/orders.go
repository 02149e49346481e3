package handlers

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/state"

	"github.com/gorilla/websocket"
)

const (
	ordersPrefix      = "/api/orders/"
	trackPingInterval = 30 * time.Second
	trackWriteWait    = 10 * time.Second
)

// OrderHandler представляет обработчик заказов
type OrderHandler struct {
	service  OrderService
	tracker  OrderTracker
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewOrderHandler создает новый обработчик заказов. tracker может быть nil,
// тогда websocket-трекинг недоступен.
func NewOrderHandler(service OrderService, tracker OrderTracker, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		tracker: tracker,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ListMyOrders возвращает заказы текущего покупателя, новые первыми
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	orders, err := h.service.ListCustomerOrders(r.Context(), claims.CustomerID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list orders")
		return
	}

	writeJSONResponse(w, http.StatusOK, orders)
}

// GetOrder получает заказ по ID
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.service.GetOrder(r.Context(), claims.CustomerID, claims.IsAdmin(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	writeJSONResponse(w, http.StatusOK, order)
}

// UpdateOrderStatus обновляет статус заказа (администратор)
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.Status.IsValid() {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update order status")
		return
	}

	writeJSONResponse(w, http.StatusOK, order)
}

// TrackOrder открывает websocket и шлёт кадры State[Order] при каждой смене статуса.
// Права проверяются до апгрейда, чтобы отказ пришёл обычным HTTP-ответом.
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	if h.tracker == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Order tracking is not available")
		return
	}

	if _, err := h.service.GetOrder(r.Context(), claims.CustomerID, claims.IsAdmin(), orderID); err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// последний кадр вытесняет непрочитанный предыдущий
	frames := make(chan state.State[*models.Order], 1)
	holder := state.NewHolder(func(ctx context.Context) (*models.Order, error) {
		return h.service.GetOrder(ctx, claims.CustomerID, claims.IsAdmin(), orderID)
	}, func(s state.State[*models.Order]) {
		select {
		case <-frames:
		default:
		}
		select {
		case frames <- s:
		default:
		}
	})
	defer holder.Close()

	wake, unsubscribe := h.tracker.Subscribe(orderID)
	defer unsubscribe()

	go h.readUntilClosed(conn, cancel)

	h.log.WithFields(map[string]interface{}{
		"order_id":    orderID,
		"customer_id": claims.CustomerID,
	}).Debug("Order tracking started")

	holder.Reload(ctx)

	ping := time.NewTicker(trackPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			holder.Reload(ctx)
		case frame := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(trackWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				h.log.WithError(err).Debug("Tracking stream closed on write")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(trackWriteWait)); err != nil {
				return
			}
		}
	}
}

// readUntilClosed вычитывает входящие кадры, пока клиент не закроет соединение
func (h *OrderHandler) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
