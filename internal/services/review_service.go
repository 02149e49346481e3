package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

const (
	minRating = 1
	maxRating = 5

	reviewImagePrefix = "reviews"
	maxCommentLength  = 2000
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ReviewService отзывы о товарах
type ReviewService struct {
	reviews  ReviewRepository
	products ProductRepository
	images   ImageStore
	log      *logger.Logger
	maxImage int64
}

// NewReviewService создает сервис отзывов. images может быть nil, тогда фото к отзывам не принимаются.
func NewReviewService(reviews ReviewRepository, products ProductRepository, images ImageStore, log *logger.Logger, maxUploadMB int) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		images:   images,
		log:      log,
		maxImage: int64(maxUploadMB) << 20,
	}
}

// CreateReview сохраняет отзыв; изображение загружается в хранилище до записи в БД
func (s *ReviewService) CreateReview(ctx context.Context, customerID, productID uuid.UUID, req *models.CreateReviewRequest, image *models.ImageUpload) (*models.Review, error) {
	if req.Rating < minRating || req.Rating > maxRating {
		return nil, apperror.Validation(fmt.Sprintf("rating must be between %d and %d", minRating, maxRating), nil)
	}
	if req.Comment != nil {
		trimmed := strings.TrimSpace(*req.Comment)
		if len(trimmed) > maxCommentLength {
			return nil, apperror.Validation("comment is too long", nil)
		}
		req.Comment = &trimmed
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	review := &models.Review{
		ID:         uuid.New(),
		ProductID:  productID,
		CustomerID: customerID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		CreatedAt:  time.Now().UTC(),
	}

	if image != nil {
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		review.ImageURL = &url
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if review.ImageURL != nil {
			if delErr := s.images.DeleteByURL(ctx, *review.ImageURL); delErr != nil {
				s.log.WithError(delErr).Warn("Failed to delete orphaned review image")
			}
		}
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"review_id":  review.ID,
		"product_id": productID,
		"rating":     review.Rating,
	}).Info("Review created")
	return review, nil
}

func (s *ReviewService) uploadImage(ctx context.Context, image *models.ImageUpload) (string, error) {
	if s.images == nil {
		return "", apperror.Validation("image uploads are disabled", nil)
	}
	if !allowedImageTypes[image.ContentType] {
		return "", apperror.Validation("unsupported image type", nil)
	}
	if s.maxImage > 0 && int64(len(image.Data)) > s.maxImage {
		return "", apperror.Validation("image is too large", nil)
	}
	return s.images.Upload(ctx, reviewImagePrefix, image.Filename, image.ContentType, image.Data)
}

// ListReviews возвращает отзывы о товаре, новые первыми
func (s *ReviewService) ListReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Review, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	reviews, err := s.reviews.ListByProduct(ctx, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []*models.Review{}
	}
	return reviews, nil
}

// RatingSummary средняя оценка товара, округленная до сотых
func (s *ReviewService) RatingSummary(ctx context.Context, productID uuid.UUID) (*models.RatingSummary, error) {
	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return nil, err
	}
	summary.ProductID = productID
	summary.Average = math.Round(summary.Average*100) / 100
	return summary, nil
}
