package services

import (
	"context"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/retry"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// ImageLinkTTL время жизни временной ссылки на изображение
	ImageLinkTTL = 15 * time.Minute
)

// CatalogService отдает товары каталога постранично
type CatalogService struct {
	products ProductRepository
	images   ImageStore
	log      *logger.Logger
	retry    retry.Policy
}

// NewCatalogService создает сервис каталога
func NewCatalogService(products ProductRepository, images ImageStore, log *logger.Logger, policy retry.Policy) *CatalogService {
	return &CatalogService{
		products: products,
		images:   images,
		log:      log,
		retry:    policy,
	}
}

// BrowseCategory возвращает страницу товаров категории после курсора
func (s *CatalogService) BrowseCategory(ctx context.Context, category string, pageSize int, cursor string) (*models.ProductPage, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperror.Validation("category is required", nil)
	}

	var items []models.Product
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		items, err = s.products.ListByCategory(ctx, category)
		return err
	})
	if err != nil {
		return nil, err
	}

	page := PaginateProducts(items, pageSize, cursor)
	return &page, nil
}

// GetProduct возвращает товар
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// CreateProduct добавляет товар в каталог
func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Category) == "" {
		return nil, apperror.Validation("name and category are required", nil)
	}
	if req.Price < 0 || req.Stock < 0 {
		return nil, apperror.Validation("price and stock must be non-negative", nil)
	}

	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	now := time.Now()
	p := &models.Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       round2(req.Price),
		Unit:        unit,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"product_id": p.ID,
		"category":   p.Category,
	}).Info("Product created")
	return p, nil
}

// UploadProductImage загружает изображение товара в хранилище и сохраняет ссылку.
// Прежнее изображение удаляется после успешной замены.
func (s *CatalogService) UploadProductImage(ctx context.Context, productID uuid.UUID, img *models.ImageUpload) (string, error) {
	if s.images == nil {
		return "", apperror.Validation("image uploads are not configured", nil)
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return "", err
	}
	var previous string
	if product.ImageURL != nil {
		previous = *product.ImageURL
	}
	url, err := s.images.Upload(ctx, "products", img.Filename, img.ContentType, img.Data)
	if err != nil {
		return "", err
	}
	if err := s.products.SetImage(ctx, productID, url); err != nil {
		s.discardImage(ctx, url)
		return "", err
	}
	if previous != "" && previous != url {
		s.discardImage(ctx, previous)
	}
	return url, nil
}

// ProductImageLink возвращает временную ссылку на изображение товара
func (s *CatalogService) ProductImageLink(ctx context.Context, productID uuid.UUID) (string, error) {
	if s.images == nil {
		return "", apperror.Validation("image storage is not configured", nil)
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return "", err
	}
	if product.ImageURL == nil || *product.ImageURL == "" {
		return "", apperror.NotFound("product has no image", nil)
	}
	return s.images.PresignByURL(ctx, *product.ImageURL, ImageLinkTTL)
}

func (s *CatalogService) discardImage(ctx context.Context, url string) {
	if err := s.images.DeleteByURL(ctx, url); err != nil {
		s.log.WithError(err).WithField("image_url", url).Warn("Failed to delete product image")
	}
}

// PaginateProducts режет упорядоченный список на страницу после курсора.
// Курсор, которого нет в списке, начинает выдачу сначала.
func PaginateProducts(items []models.Product, pageSize int, cursor string) models.ProductPage {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	start := 0
	if cursor != "" {
		for i := range items {
			if items[i].ID.String() == cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	page := models.ProductPage{
		Items:       append([]models.Product{}, items[start:end]...),
		HasNextPage: end < len(items),
	}
	if len(page.Items) > 0 {
		page.NextCursor = page.Items[len(page.Items)-1].ID.String()
	}
	return page
}
