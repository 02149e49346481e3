package services

import (
	"context"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// FavoriteService избранные товары покупателя
type FavoriteService struct {
	favorites FavoriteRepository
	products  ProductRepository
	log       *logger.Logger
}

func NewFavoriteService(favorites FavoriteRepository, products ProductRepository, log *logger.Logger) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		products:  products,
		log:       log,
	}
}

// Add добавляет товар в избранное; повторное добавление ничего не меняет
func (s *FavoriteService) Add(ctx context.Context, customerID, productID uuid.UUID) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	if err := s.favorites.Add(ctx, customerID, productID); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{
		"customer_id": customerID,
		"product_id":  productID,
	}).Debug("Favorite added")
	return nil
}

func (s *FavoriteService) Remove(ctx context.Context, customerID, productID uuid.UUID) error {
	return s.favorites.Remove(ctx, customerID, productID)
}

func (s *FavoriteService) List(ctx context.Context, customerID uuid.UUID) ([]models.Product, error) {
	products, err := s.favorites.ListProducts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}
