package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer покупатель
type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RegisterCustomerRequest запрос на регистрацию покупателя
type RegisterCustomerRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

// Location адрес доставки покупателя
type Location struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	Label      string    `json:"label" db:"label"`
	Address    string    `json:"address" db:"address"`
	Latitude   *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude  *float64  `json:"longitude,omitempty" db:"longitude"`
	IsDefault  bool      `json:"is_default" db:"is_default"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CreateLocationRequest запрос на добавление адреса
type CreateLocationRequest struct {
	Label     string   `json:"label"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	IsDefault bool     `json:"is_default"`
}

// Favorite избранный товар
type Favorite struct {
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DevicePlatform платформа устройства для push
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
	DevicePlatformWeb     DevicePlatform = "web"
)

// DeviceToken токен устройства для push-уведомлений
type DeviceToken struct {
	CustomerID uuid.UUID      `json:"customer_id" db:"customer_id"`
	Token      string         `json:"token" db:"token"`
	Platform   DevicePlatform `json:"platform" db:"platform"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// RegisterDeviceRequest запрос на регистрацию устройства
type RegisterDeviceRequest struct {
	Token    string         `json:"token"`
	Platform DevicePlatform `json:"platform"`
}
