package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// CustomerService профили покупателей и их адреса доставки
type CustomerService struct {
	customers CustomerRepository
	locations LocationRepository
	log       *logger.Logger
}

// NewCustomerService создает сервис покупателей
func NewCustomerService(customers CustomerRepository, locations LocationRepository, log *logger.Logger) *CustomerService {
	return &CustomerService{
		customers: customers,
		locations: locations,
		log:       log,
	}
}

// Register регистрирует покупателя
func (s *CustomerService) Register(ctx context.Context, req *models.RegisterCustomerRequest) (*models.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name is required", nil)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email", err)
	}

	customer := &models.Customer{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.log.WithField("customer_id", customer.ID).Info("Customer registered")
	return customer, nil
}

// GetProfile возвращает профиль покупателя
func (s *CustomerService) GetProfile(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	return s.customers.GetByID(ctx, customerID)
}

// AddLocation добавляет адрес доставки
func (s *CustomerService) AddLocation(ctx context.Context, customerID uuid.UUID, req *models.CreateLocationRequest) (*models.Location, error) {
	if strings.TrimSpace(req.Address) == "" {
		return nil, apperror.Validation("address is required", nil)
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		return nil, apperror.Validation("latitude must be between -90 and 90", nil)
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		return nil, apperror.Validation("longitude must be between -180 and 180", nil)
	}

	loc := &models.Location{
		ID:         uuid.New(),
		CustomerID: customerID,
		Label:      strings.TrimSpace(req.Label),
		Address:    strings.TrimSpace(req.Address),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		IsDefault:  req.IsDefault,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.locations.Create(ctx, loc); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"customer_id": customerID,
		"location_id": loc.ID,
	}).Info("Location added")
	return loc, nil
}

func (s *CustomerService) ListLocations(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error) {
	return s.locations.ListByCustomer(ctx, customerID)
}

func (s *CustomerService) DeleteLocation(ctx context.Context, customerID, locationID uuid.UUID) error {
	return s.locations.Delete(ctx, customerID, locationID)
}

// SetDefaultLocation делает адрес основным; прежний основной сбрасывается
func (s *CustomerService) SetDefaultLocation(ctx context.Context, customerID, locationID uuid.UUID) error {
	if err := s.locations.SetDefault(ctx, customerID, locationID); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{
		"customer_id": customerID,
		"location_id": locationID,
	}).Info("Default location changed")
	return nil
}
