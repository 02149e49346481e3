package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// ReviewRepository отзывы о товарах
type ReviewRepository struct {
	db *database.DB
}

// NewReviewRepository создает репозиторий отзывов
func NewReviewRepository(db *database.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет отзыв
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, customer_id, rating, comment, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query, review.ID, review.ProductID, review.CustomerID,
		review.Rating, review.Comment, review.ImageURL, review.CreatedAt); err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// ListByProduct возвращает отзывы о товаре, новые первыми
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Review, error) {
	query := `
		SELECT id, product_id, customer_id, rating, comment, image_url, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		rv := &models.Review{}
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.ImageURL, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

// Summary средняя оценка и количество отзывов
func (r *ReviewRepository) Summary(ctx context.Context, productID uuid.UUID) (*models.RatingSummary, error) {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.db.QueryRowContext(ctx, `SELECT AVG(rating), COUNT(*) FROM reviews WHERE product_id = $1`, productID).Scan(&avg, &count)
	if err != nil {
		return nil, fmt.Errorf("failed to get rating summary: %w", err)
	}
	return &models.RatingSummary{ProductID: productID, Average: avg.Float64, Count: count}, nil
}
