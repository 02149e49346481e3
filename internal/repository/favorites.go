package repository

import (
	"context"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// FavoriteRepository избранные товары
type FavoriteRepository struct {
	db *database.DB
}

// NewFavoriteRepository создает репозиторий избранного
func NewFavoriteRepository(db *database.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add добавляет товар в избранное; повторное добавление ничего не меняет
func (r *FavoriteRepository) Add(ctx context.Context, customerID, productID uuid.UUID) error {
	query := `INSERT INTO favorites (customer_id, product_id) VALUES ($1, $2) ON CONFLICT (customer_id, product_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, customerID, productID); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// Remove убирает товар из избранного
func (r *FavoriteRepository) Remove(ctx context.Context, customerID, productID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE customer_id = $1 AND product_id = $2`, customerID, productID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// ListProducts возвращает избранные товары, последние добавленные первыми
func (r *FavoriteRepository) ListProducts(ctx context.Context, customerID uuid.UUID) ([]models.Product, error) {
	query := `
		SELECT p.id, p.name, p.description, p.category, p.price, p.unit, p.stock, p.image_url, p.is_available, p.created_at, p.updated_at
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.customer_id = $1
		ORDER BY f.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}
	return products, nil
}
