package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"
)

// CouponService управляет купонами и проверяет их применимость.
type CouponService struct {
	repo CouponRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewCouponService создаёт сервис купонов.
func NewCouponService(repo CouponRepository, log *logger.Logger) *CouponService {
	return &CouponService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Validate возвращает вердикт по купону. Ненайденный купон это вердикт, ошибка только при сбое хранилища.
func (s *CouponService) Validate(ctx context.Context, code string, orderAmount float64) (models.CouponVerdict, error) {
	normalized := models.NormalizeCouponCode(code)
	if normalized == "" {
		return invalidVerdict(models.CouponReasonNotFound), nil
	}

	coupon, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return invalidVerdict(models.CouponReasonNotFound), nil
		}
		return models.CouponVerdict{}, fmt.Errorf("failed to look up coupon: %w", err)
	}

	return EvaluateCoupon(coupon, orderAmount, s.now()), nil
}

// CreateCoupon создаёт новый купон.
func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	code := models.NormalizeCouponCode(req.Code)
	if code == "" {
		return nil, apperror.Validation("code is required", nil)
	}
	if err := validateCouponPayload(req.DiscountType, req.Value, req.MinimumOrderAmount, req.MaximumDiscount, req.UsageLimit); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	if req.ExpirationDate.IsZero() {
		return nil, apperror.Validation("expiration_date is required", nil)
	}

	now := s.now()
	coupon := &models.Coupon{
		Code:               code,
		DiscountType:       req.DiscountType,
		Value:              req.Value,
		MinimumOrderAmount: req.MinimumOrderAmount,
		MaximumDiscount:    req.MaximumDiscount,
		UsageLimit:         req.UsageLimit,
		ExpirationDate:     req.ExpirationDate.UTC(),
		IsActive:           req.IsActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, err
	}

	s.log.WithField("coupon_code", coupon.Code).Info("Coupon created")
	return coupon, nil
}

// UpdateCoupon обновляет параметры купона.
func (s *CouponService) UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	if err := validateCouponPayload(req.DiscountType, req.Value, req.MinimumOrderAmount, req.MaximumDiscount, req.UsageLimit); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	if err := s.repo.Update(ctx, code, req); err != nil {
		return nil, err
	}
	return s.repo.GetByCode(ctx, code)
}

// DeleteCoupon удаляет купон.
func (s *CouponService) DeleteCoupon(ctx context.Context, code string) error {
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}
	s.log.WithField("coupon_code", models.NormalizeCouponCode(code)).Info("Coupon deleted")
	return nil
}

// GetCoupon возвращает купон по коду.
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListCoupons возвращает список купонов.
func (s *CouponService) ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	return s.repo.List(ctx, limit, offset)
}

func validateCouponPayload(discountType models.DiscountType, value, minimum float64, maxDiscount *float64, usageLimit *int) error {
	switch discountType {
	case models.DiscountTypePercentage:
		if value <= 0 || value > 100 {
			return fmt.Errorf("percentage value must be in (0, 100]")
		}
	case models.DiscountTypeFixedAmount:
		if value <= 0 {
			return fmt.Errorf("fixed amount value must be positive")
		}
	case models.DiscountTypeFreeShipping:
		// value не используется
	default:
		return fmt.Errorf("invalid discount_type: %s", strings.TrimSpace(string(discountType)))
	}
	if minimum < 0 {
		return fmt.Errorf("minimum_order_amount must be non-negative")
	}
	if maxDiscount != nil && *maxDiscount < 0 {
		return fmt.Errorf("maximum_discount must be non-negative")
	}
	if usageLimit != nil && *usageLimit < 0 {
		return fmt.Errorf("usage_limit must be non-negative")
	}
	return nil
}
