package repository

import (
	"context"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// SpinRepository журнал вращений колеса
type SpinRepository struct {
	db *database.DB
}

// NewSpinRepository создает репозиторий вращений
func NewSpinRepository(db *database.DB) *SpinRepository {
	return &SpinRepository{db: db}
}

// Record сохраняет результат вращения
func (r *SpinRepository) Record(ctx context.Context, customerID uuid.UUID, result *models.SpinResult) error {
	query := `
		INSERT INTO gamification_spins (id, customer_id, segment, points, coupon_code, spun_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), customerID, result.Segment, result.Points,
		result.CouponCode, result.SpunAt); err != nil {
		return fmt.Errorf("failed to record spin: %w", err)
	}
	return nil
}
