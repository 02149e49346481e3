package repository

import (
	"context"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// DeviceRepository токены устройств для push
type DeviceRepository struct {
	db *database.DB
}

// NewDeviceRepository создает репозиторий устройств
func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert регистрирует токен; токен, переехавший к другому покупателю, перепривязывается
func (r *DeviceRepository) Upsert(ctx context.Context, d *models.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (token, customer_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET customer_id = EXCLUDED.customer_id, platform = EXCLUDED.platform
	`
	if _, err := r.db.ExecContext(ctx, query, d.Token, d.CustomerID, d.Platform, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// Delete удаляет токен покупателя
func (r *DeviceRepository) Delete(ctx context.Context, customerID uuid.UUID, token string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1 AND customer_id = $2`, token, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("device token not found", nil)
	}
	return nil
}

// Tokens возвращает токены покупателя
func (r *DeviceRepository) Tokens(ctx context.Context, customerID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM device_tokens WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return tokens, nil
}
