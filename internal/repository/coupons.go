package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

const couponColumns = `code, discount_type, value, minimum_order_amount, maximum_discount, usage_limit, usage_count, expiration_date, is_active, created_at, updated_at`

// CouponRepository купоны
type CouponRepository struct {
	db *database.DB
}

// NewCouponRepository создает репозиторий купонов
func NewCouponRepository(db *database.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	var usageLimit sql.NullInt64
	err := row.Scan(&c.Code, &c.DiscountType, &c.Value, &c.MinimumOrderAmount, &c.MaximumDiscount,
		&usageLimit, &c.UsageCount, &c.ExpirationDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		c.UsageLimit = &limit
	}
	return c, nil
}

// GetByCode ищет купон по нормализованному коду
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, models.NormalizeCouponCode(code)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("coupon not found", err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// Create сохраняет купон
func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (code, discount_type, value, minimum_order_amount, maximum_discount, usage_limit, usage_count, expiration_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query, c.Code, c.DiscountType, c.Value, c.MinimumOrderAmount,
		c.MaximumDiscount, c.UsageLimit, c.ExpirationDate, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("coupon already exists", err)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// Update обновляет параметры купона; счетчик использований не трогает
func (r *CouponRepository) Update(ctx context.Context, code string, req *models.UpdateCouponRequest) error {
	query := `
		UPDATE coupons
		SET discount_type = $1, value = $2, minimum_order_amount = $3, maximum_discount = $4,
		    usage_limit = $5, expiration_date = $6, is_active = $7, updated_at = $8
		WHERE code = $9
	`
	result, err := r.db.ExecContext(ctx, query, req.DiscountType, req.Value, req.MinimumOrderAmount,
		req.MaximumDiscount, req.UsageLimit, req.ExpirationDate, req.IsActive, time.Now(), models.NormalizeCouponCode(code))
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("coupon not found", nil)
	}
	return nil
}

// Delete удаляет купон
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM coupons WHERE code = $1", models.NormalizeCouponCode(code))
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("coupon not found", nil)
	}
	return nil
}

// List возвращает купоны, новые первыми
func (r *CouponRepository) List(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

// redeemCoupon увеличивает счетчик использований, только если лимит не исчерпан.
// Ноль затронутых строк значит, что параллельный заказ забрал последнее использование.
func redeemCoupon(ctx context.Context, tx *sql.Tx, code string) error {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE code = $1 AND is_active AND (usage_limit IS NULL OR usage_count < usage_limit)
	`
	result, err := tx.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.Conflict(models.CouponReasonUsageLimit, nil)
	}
	return nil
}
