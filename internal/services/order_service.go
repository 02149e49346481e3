package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// OrderService представляет сервис для работы с заказами
type OrderService struct {
	repo      OrderRepository
	events    EventPublisher
	notifier  StatusNotifier
	pushes    *NotificationService
	analytics interface{ InvalidateCache(ctx context.Context) }
	log       *logger.Logger
	now       func() time.Time
}

// NewOrderService создает новый экземпляр сервиса заказов
func NewOrderService(repo OrderRepository, events EventPublisher, notifier StatusNotifier, pushes *NotificationService, log *logger.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		events:   events,
		notifier: notifier,
		pushes:   pushes,
		log:      log,
		now:      time.Now,
	}
}

// SetAnalytics подключает сброс кеша аналитики после смены статусов
func (s *OrderService) SetAnalytics(analytics *AnalyticsService) {
	if analytics != nil {
		s.analytics = analytics
	}
}

// GetOrder получает заказ по ID; чужой заказ виден только администратору
func (s *OrderService) GetOrder(ctx context.Context, requesterID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.CustomerID != requesterID {
		// не раскрываем существование чужого заказа
		return nil, apperror.NotFound("order not found", nil)
	}
	return order, nil
}

// ListCustomerOrders возвращает заказы покупателя, новые первыми
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус и дописывает запись в историю
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	if !req.Status.IsValid() {
		return nil, apperror.Validation("invalid order status", nil)
	}

	entry := models.StatusEntry{Status: req.Status, Timestamp: s.now().UTC(), Note: req.Note}
	oldStatus, customerID, err := s.repo.UpdateStatus(ctx, orderID, entry, func(current models.OrderStatus) error {
		if !current.CanTransitionTo(req.Status) {
			return apperror.Validation(fmt.Sprintf("cannot change status from %s to %s", current, req.Status), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"old_status": oldStatus,
		"new_status": req.Status,
	}).Info("Order status updated")

	s.afterStatusChange(ctx, orderID, customerID, oldStatus, req.Status)

	return s.repo.GetByID(ctx, orderID)
}

// afterStatusChange рассылает последствия смены статуса; сбои только логируются
func (s *OrderService) afterStatusChange(ctx context.Context, orderID, customerID uuid.UUID, oldStatus, newStatus models.OrderStatus) {
	if s.notifier != nil {
		s.notifier.Notify(orderID)
	}
	if s.analytics != nil {
		s.analytics.InvalidateCache(ctx)
	}
	if s.events != nil {
		if err := s.events.PublishOrderStatusChanged(orderID, customerID, oldStatus, newStatus); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Error("Failed to publish order status change")
		}
	}
	if s.pushes != nil {
		s.pushes.NotifyCustomer(ctx, customerID, "Order update",
			fmt.Sprintf("Your order is now %s", newStatus),
			map[string]string{"order_id": orderID.String(), "status": string(newStatus)})
	}
}
