package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// CustomerRepository покупатели
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository создает репозиторий покупателей
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create регистрирует покупателя
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (id, name, email, phone, points, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Email, c.Phone, c.Points, c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("customer with this email already exists", err)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetByID возвращает покупателя
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c := &models.Customer{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, email, phone, points, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Points, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("customer not found", err)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// CreatedAts возвращает даты регистрации всех покупателей
func (r *CustomerRepository) CreatedAts(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT created_at FROM customers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return result, nil
}

// AddPoints начисляет баллы и возвращает новый баланс
func (r *CustomerRepository) AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var points int
	err := r.db.QueryRowContext(ctx, `UPDATE customers SET points = points + $1 WHERE id = $2 RETURNING points`, delta, id).Scan(&points)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotFound("customer not found", err)
		}
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return points, nil
}
