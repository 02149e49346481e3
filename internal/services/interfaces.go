package services

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redis"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// ----- Repositories -----

type ProductRepository interface {
	ListByCategory(ctx context.Context, category string) ([]models.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	SetImage(ctx context.Context, id uuid.UUID, imageURL string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*models.Order, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, entry models.StatusEntry, check repository.StatusCheck) (models.OrderStatus, uuid.UUID, error)
}

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, code string, req *models.UpdateCouponRequest) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	CreatedAts(ctx context.Context) ([]time.Time, error)
	AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, error)
}

type LocationRepository interface {
	Create(ctx context.Context, loc *models.Location) error
	Get(ctx context.Context, customerID, id uuid.UUID) (*models.Location, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error)
	Delete(ctx context.Context, customerID, id uuid.UUID) error
	SetDefault(ctx context.Context, customerID, id uuid.UUID) error
}

type FavoriteRepository interface {
	Add(ctx context.Context, customerID, productID uuid.UUID) error
	Remove(ctx context.Context, customerID, productID uuid.UUID) error
	ListProducts(ctx context.Context, customerID uuid.UUID) ([]models.Product, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Review, error)
	Summary(ctx context.Context, productID uuid.UUID) (*models.RatingSummary, error)
}

type DeviceRepository interface {
	Upsert(ctx context.Context, d *models.DeviceToken) error
	Delete(ctx context.Context, customerID uuid.UUID, token string) error
	Tokens(ctx context.Context, customerID uuid.UUID) ([]string, error)
}

type SpinRepository interface {
	Record(ctx context.Context, customerID uuid.UUID, result *models.SpinResult) error
}

// ----- Infrastructure -----

// EventPublisher публикует доменные события (Kafka)
type EventPublisher interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatusChanged(orderID, customerID uuid.UUID, oldStatus, newStatus models.OrderStatus) error
	PublishCouponRedeemed(code string, orderID uuid.UUID, discount float64) error
	PublishPaymentEvent(eventType models.EventType, data models.PaymentEventData) error
	PublishNotification(data models.NotificationData) error
}

// Cache JSON-кеш поверх Redis
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Update(ctx context.Context, key string, ttl time.Duration, dest interface{}, mutate func(found bool) (bool, error)) error
}

// Leaderboard отсортированное множество баллов и кулдаун вращений
type Leaderboard interface {
	ZIncrBy(ctx context.Context, key, member string, delta float64) (float64, error)
	ZTop(ctx context.Context, key string, n int64) ([]redis.ScoredMember, error)
	ZRankDesc(ctx context.Context, key, member string) (int64, float64, error)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) error
}

// ImageStore объектное хранилище изображений
type ImageStore interface {
	Upload(ctx context.Context, prefix, filename, contentType string, data []byte) (string, error)
	DeleteByURL(ctx context.Context, rawURL string) error
	PresignByURL(ctx context.Context, rawURL string, expiry time.Duration) (string, error)
}

// PaymentGateway платежный шлюз
type PaymentGateway = payment.Gateway

// StatusNotifier будит локальных подписчиков трекинга
type StatusNotifier interface {
	Notify(orderID uuid.UUID)
}
