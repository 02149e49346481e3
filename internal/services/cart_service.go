package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

const cartTTL = 30 * 24 * time.Hour

// CartService корзины покупателей в Redis
type CartService struct {
	cache    Cache
	products ProductRepository
	log      *logger.Logger
}

// NewCartService создает сервис корзины
func NewCartService(cache Cache, products ProductRepository, log *logger.Logger) *CartService {
	return &CartService{
		cache:    cache,
		products: products,
		log:      log,
	}
}

func cartKey(customerID uuid.UUID) string {
	return redis.GenerateKey(redis.KeyPrefixCart, customerID.String())
}

// GetCart возвращает корзину; отсутствующая корзина пуста
func (s *CartService) GetCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{}
	if err := s.cache.Get(ctx, cartKey(customerID), cart); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return &models.Cart{CustomerID: customerID, Items: []models.CartItem{}}, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	cart.CustomerID = customerID
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

// AddItem добавляет товар; количество суммируется с уже лежащим в корзине
func (s *CartService) AddItem(ctx context.Context, customerID uuid.UUID, req *models.CartItemRequest) (*models.Cart, error) {
	if req.Quantity <= 0 {
		return nil, apperror.Validation("quantity must be positive", nil)
	}
	if err := s.ensureAvailable(ctx, req.ProductID); err != nil {
		return nil, err
	}

	return s.update(ctx, customerID, func(cart *models.Cart) {
		for i := range cart.Items {
			if cart.Items[i].ProductID == req.ProductID {
				cart.Items[i].Quantity += req.Quantity
				return
			}
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: req.ProductID, Quantity: req.Quantity})
	})
}

// SetQuantity задает количество; ноль удаляет позицию
func (s *CartService) SetQuantity(ctx context.Context, customerID uuid.UUID, req *models.CartItemRequest) (*models.Cart, error) {
	if req.Quantity < 0 {
		return nil, apperror.Validation("quantity must be non-negative", nil)
	}
	if req.Quantity == 0 {
		return s.RemoveItem(ctx, customerID, req.ProductID)
	}
	if err := s.ensureAvailable(ctx, req.ProductID); err != nil {
		return nil, err
	}

	return s.update(ctx, customerID, func(cart *models.Cart) {
		for i := range cart.Items {
			if cart.Items[i].ProductID == req.ProductID {
				cart.Items[i].Quantity = req.Quantity
				return
			}
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: req.ProductID, Quantity: req.Quantity})
	})
}

// RemoveItem убирает позицию из корзины
func (s *CartService) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.Cart, error) {
	return s.update(ctx, customerID, func(cart *models.Cart) {
		kept := make([]models.CartItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
	})
}

// Clear очищает корзину
func (s *CartService) Clear(ctx context.Context, customerID uuid.UUID) error {
	if err := s.cache.Delete(ctx, cartKey(customerID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *CartService) ensureAvailable(ctx context.Context, productID uuid.UUID) error {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsAvailable {
		return apperror.Validation(fmt.Sprintf("product %s is not available", product.Name), nil)
	}
	return nil
}

// update атомарно применяет mutate к корзине; пустая корзина удаляется
func (s *CartService) update(ctx context.Context, customerID uuid.UUID, mutate func(cart *models.Cart)) (*models.Cart, error) {
	cart := &models.Cart{}
	err := s.cache.Update(ctx, cartKey(customerID), cartTTL, cart, func(found bool) (bool, error) {
		if !found {
			*cart = models.Cart{}
		}
		cart.CustomerID = customerID
		if cart.CheckoutID == uuid.Nil {
			cart.CheckoutID = uuid.New()
		}
		mutate(cart)
		return len(cart.Items) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	s.log.WithFields(map[string]interface{}{
		"customer_id": customerID,
		"items":       len(cart.Items),
	}).Debug("Cart saved")
	return cart, nil
}
