package models

import (
	"time"

	"github.com/google/uuid"
)

// Product товар каталога
type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Price       float64   `json:"price" db:"price"`
	Unit        string    `json:"unit" db:"unit"`
	Stock       int       `json:"stock" db:"stock"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProductPage страница выдачи по категории.
type ProductPage struct {
	Items       []Product `json:"items"`
	HasNextPage bool      `json:"has_next_page"`
	NextCursor  string    `json:"next_cursor"`
}

// CreateProductRequest запрос на создание товара
type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Stock       int     `json:"stock"`
	ImageURL    *string `json:"image_url,omitempty"`
}
