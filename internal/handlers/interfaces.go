package handlers

import (
	"context"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// ----- Catalog -----

type CatalogService interface {
	BrowseCategory(ctx context.Context, category string, pageSize int, cursor string) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	UploadProductImage(ctx context.Context, productID uuid.UUID, img *models.ImageUpload) (string, error)
	ProductImageLink(ctx context.Context, productID uuid.UUID) (string, error)
}

type ReviewService interface {
	CreateReview(ctx context.Context, customerID, productID uuid.UUID, req *models.CreateReviewRequest, image *models.ImageUpload) (*models.Review, error)
	ListReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Review, error)
	RatingSummary(ctx context.Context, productID uuid.UUID) (*models.RatingSummary, error)
}

// ----- Cart & checkout -----

type CartService interface {
	GetCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, customerID uuid.UUID, req *models.CartItemRequest) (*models.Cart, error)
	SetQuantity(ctx context.Context, customerID uuid.UUID, req *models.CartItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, customerID uuid.UUID) error
}

type CheckoutService interface {
	PrepareCheckout(ctx context.Context, customerID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutQuote, error)
	ConfirmCheckout(ctx context.Context, customerID uuid.UUID, req *models.CheckoutRequest) (*models.Order, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
}

// ----- Orders -----

type OrderService interface {
	GetOrder(ctx context.Context, requesterID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, req *models.UpdateOrderStatusRequest) (*models.Order, error)
}

// OrderTracker источник пробуждений по заказу
type OrderTracker interface {
	Subscribe(orderID uuid.UUID) (<-chan struct{}, func())
}

// ----- Coupons -----

type CouponService interface {
	Validate(ctx context.Context, code string, orderAmount float64) (models.CouponVerdict, error)
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
}

// ----- Analytics -----

type AnalyticsProvider interface {
	GetDashboard(ctx context.Context, filter *models.AnalyticsFilter) (*models.DashboardSummary, error)
}

// ----- Customers -----

type CustomerService interface {
	Register(ctx context.Context, req *models.RegisterCustomerRequest) (*models.Customer, error)
	GetProfile(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	AddLocation(ctx context.Context, customerID uuid.UUID, req *models.CreateLocationRequest) (*models.Location, error)
	ListLocations(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error)
	DeleteLocation(ctx context.Context, customerID, locationID uuid.UUID) error
	SetDefaultLocation(ctx context.Context, customerID, locationID uuid.UUID) error
}

type FavoriteService interface {
	Add(ctx context.Context, customerID, productID uuid.UUID) error
	Remove(ctx context.Context, customerID, productID uuid.UUID) error
	List(ctx context.Context, customerID uuid.UUID) ([]models.Product, error)
}

type DeviceService interface {
	RegisterDevice(ctx context.Context, customerID uuid.UUID, req *models.RegisterDeviceRequest) (*models.DeviceToken, error)
	UnregisterDevice(ctx context.Context, customerID uuid.UUID, token string) error
}

// TokenIssuer выпускает access-токены
type TokenIssuer interface {
	GenerateToken(customerID uuid.UUID, role string) (string, error)
}

// ----- Gamification -----

type GamificationService interface {
	Leaderboard(ctx context.Context, n int) ([]models.LeaderboardEntry, error)
	MyRank(ctx context.Context, customerID uuid.UUID) (*models.LeaderboardEntry, error)
	Spin(ctx context.Context, customerID uuid.UUID) (*models.SpinResult, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
