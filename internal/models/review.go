package models

import (
	"time"

	"github.com/google/uuid"
)

// Review отзыв о товаре
type Review struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    *string   `json:"comment,omitempty" db:"comment"`
	ImageURL   *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CreateReviewRequest запрос на создание отзыва
type CreateReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// ImageUpload изображение, загружаемое в хранилище
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// RatingSummary средняя оценка товара
type RatingSummary struct {
	ProductID uuid.UUID `json:"product_id"`
	Average   float64   `json:"average"`
	Count     int       `json:"count"`
}
