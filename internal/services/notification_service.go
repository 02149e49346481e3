package services

import (
	"context"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// NotificationService регистрирует устройства и ставит push-уведомления в очередь
type NotificationService struct {
	devices DeviceRepository
	events  EventPublisher
	log     *logger.Logger
}

// NewNotificationService создает сервис уведомлений
func NewNotificationService(devices DeviceRepository, events EventPublisher, log *logger.Logger) *NotificationService {
	return &NotificationService{
		devices: devices,
		events:  events,
		log:     log,
	}
}

// RegisterDevice сохраняет токен устройства
func (s *NotificationService) RegisterDevice(ctx context.Context, customerID uuid.UUID, req *models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, apperror.Validation("token is required", nil)
	}
	switch req.Platform {
	case models.DevicePlatformIOS, models.DevicePlatformAndroid, models.DevicePlatformWeb:
	default:
		return nil, apperror.Validation("platform must be ios, android or web", nil)
	}

	device := &models.DeviceToken{
		CustomerID: customerID,
		Token:      token,
		Platform:   req.Platform,
		CreatedAt:  time.Now(),
	}
	if err := s.devices.Upsert(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// UnregisterDevice удаляет токен устройства
func (s *NotificationService) UnregisterDevice(ctx context.Context, customerID uuid.UUID, token string) error {
	return s.devices.Delete(ctx, customerID, token)
}

// NotifyCustomer публикует запрос на push. Ошибки логируются и не возвращаются.
func (s *NotificationService) NotifyCustomer(ctx context.Context, customerID uuid.UUID, title, body string, data map[string]string) {
	tokens, err := s.devices.Tokens(ctx, customerID)
	if err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Warn("Failed to load device tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	err = s.events.PublishNotification(models.NotificationData{
		CustomerID: customerID,
		Tokens:     tokens,
		Title:      title,
		Body:       body,
		Data:       data,
	})
	if err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Warn("Failed to publish push notification")
	}
}
