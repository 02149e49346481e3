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

// LocationRepository адреса доставки
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository создает репозиторий адресов
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create сохраняет адрес; если он по умолчанию, снимает флаг с прежнего в той же транзакции
func (r *LocationRepository) Create(ctx context.Context, loc *models.Location) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if loc.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE locations SET is_default = FALSE WHERE customer_id = $1 AND is_default`, loc.CustomerID); err != nil {
			return fmt.Errorf("failed to reset default location: %w", err)
		}
	}

	query := `
		INSERT INTO locations (id, customer_id, label, address, latitude, longitude, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, query, loc.ID, loc.CustomerID, loc.Label, loc.Address,
		loc.Latitude, loc.Longitude, loc.IsDefault, loc.CreatedAt); err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get возвращает адрес покупателя
func (r *LocationRepository) Get(ctx context.Context, customerID, id uuid.UUID) (*models.Location, error) {
	loc := &models.Location{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, label, address, latitude, longitude, is_default, created_at
		FROM locations WHERE id = $1 AND customer_id = $2`, id, customerID).
		Scan(&loc.ID, &loc.CustomerID, &loc.Label, &loc.Address, &loc.Latitude, &loc.Longitude, &loc.IsDefault, &loc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("location not found", err)
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// ListByCustomer возвращает адреса; адрес по умолчанию первым
func (r *LocationRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, label, address, latitude, longitude, is_default, created_at
		FROM locations WHERE customer_id = $1
		ORDER BY is_default DESC, created_at ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		loc := &models.Location{}
		if err := rows.Scan(&loc.ID, &loc.CustomerID, &loc.Label, &loc.Address, &loc.Latitude, &loc.Longitude, &loc.IsDefault, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

// Delete удаляет адрес покупателя
func (r *LocationRepository) Delete(ctx context.Context, customerID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1 AND customer_id = $2`, id, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("location not found", nil)
	}
	return nil
}

// SetDefault делает адрес основным, снимая флаг с прежнего
func (r *LocationRepository) SetDefault(ctx context.Context, customerID, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE locations SET is_default = FALSE WHERE customer_id = $1 AND is_default`, customerID); err != nil {
		return fmt.Errorf("failed to reset default location: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE locations SET is_default = TRUE WHERE id = $1 AND customer_id = $2`, id, customerID)
	if err != nil {
		return fmt.Errorf("failed to set default location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("location not found", nil)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
