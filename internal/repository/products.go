package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

const productColumns = `id, name, description, category, price, unit, stock, image_url, is_available, created_at, updated_at`

// ProductRepository товары каталога
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository создает репозиторий товаров
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Unit, &p.Stock,
		&p.ImageURL, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListByCategory возвращает товары категории в порядке created_at, id
func (r *ProductRepository) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// GetByID возвращает товар
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product not found", err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetByIDs возвращает товары по списку ID; отсутствующие просто не попадают в результат
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	result := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return result, nil
}

// Create сохраняет товар
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, category, price, unit, stock, image_url, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Category, p.Price, p.Unit,
		p.Stock, p.ImageURL, p.IsAvailable, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// SetImage обновляет ссылку на изображение товара
func (r *ProductRepository) SetImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET image_url = $1, updated_at = NOW() WHERE id = $2`, imageURL, id)
	if err != nil {
		return fmt.Errorf("failed to update product image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("product not found", nil)
	}
	return nil
}
