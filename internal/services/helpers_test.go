package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redis"
	"storefront/internal/repository"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "debug", Format: "json"})
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skip: cannot start miniredis in this environment: %v", err)
		}
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.New(rdb, newTestLogger()), mr
}

// ----- products -----

type fakeProductRepo struct {
	mu       sync.Mutex
	products []models.Product
	listErr  error
	listHits int
}

func newFakeProductRepo(products ...models.Product) *fakeProductRepo {
	return &fakeProductRepo{products: products}
}

func (f *fakeProductRepo) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHits++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Product
	for _, p := range f.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == id {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, apperror.NotFound("product not found", nil)
}

func (f *fakeProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]*models.Product)
	for _, id := range ids {
		for i := range f.products {
			if f.products[i].ID == id {
				p := f.products[i]
				out[id] = &p
			}
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Create(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, *p)
	return nil
}

func (f *fakeProductRepo) SetImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i].ImageURL = &imageURL
			return nil
		}
	}
	return apperror.NotFound("product not found", nil)
}

func testProduct(name, category string, price float64) models.Product {
	return models.Product{
		ID:          uuid.New(),
		Name:        name,
		Category:    category,
		Price:       price,
		Unit:        "pcs",
		Stock:       10,
		IsAvailable: true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// ----- orders -----

type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*models.Order
	createErr  error
	couponErr  error
	rangeErr   error
	rangeCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.couponErr != nil && order.CouponCode != nil {
		return f.couponErr
	}
	for _, o := range f.orders {
		if o.PaymentIntentID != nil && order.PaymentIntentID != nil && *o.PaymentIntentID == *order.PaymentIntentID {
			return apperror.Conflict("order already exists for payment intent", nil)
		}
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperror.NotFound("order not found", nil)
	}
	cp := *o
	cp.StatusHistory = append([]models.StatusEntry(nil), o.StatusHistory...)
	return &cp, nil
}

func (f *fakeOrderRepo) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == paymentIntentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("order not found", nil)
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrderRepo) ListInRange(ctx context.Context, from, to time.Time) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rangeCalls++
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []*models.Order
	for _, o := range f.orders {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, entry models.StatusEntry, check repository.StatusCheck) (models.OrderStatus, uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return "", uuid.Nil, apperror.NotFound("order not found", nil)
	}
	if err := check(o.Status); err != nil {
		return "", uuid.Nil, err
	}
	old := o.Status
	o.Status = entry.Status
	o.StatusHistory = append(o.StatusHistory, entry)
	return old, o.CustomerID, nil
}

// ----- coupons -----

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*models.Coupon
	getErr  error
}

func newFakeCouponRepo(coupons ...*models.Coupon) *fakeCouponRepo {
	f := &fakeCouponRepo{coupons: make(map[string]*models.Coupon)}
	for _, c := range coupons {
		f.coupons[c.Code] = c
	}
	return f
}

func (f *fakeCouponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.coupons[models.NormalizeCouponCode(code)]
	if !ok {
		return nil, apperror.NotFound("coupon not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponRepo) Create(ctx context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.coupons[c.Code]; ok {
		return apperror.Conflict("coupon already exists", nil)
	}
	cp := *c
	f.coupons[c.Code] = &cp
	return nil
}

func (f *fakeCouponRepo) Update(ctx context.Context, code string, req *models.UpdateCouponRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[models.NormalizeCouponCode(code)]
	if !ok {
		return apperror.NotFound("coupon not found", nil)
	}
	c.DiscountType = req.DiscountType
	c.Value = req.Value
	c.MinimumOrderAmount = req.MinimumOrderAmount
	c.MaximumDiscount = req.MaximumDiscount
	c.UsageLimit = req.UsageLimit
	c.ExpirationDate = req.ExpirationDate
	c.IsActive = req.IsActive
	return nil
}

func (f *fakeCouponRepo) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code = models.NormalizeCouponCode(code)
	if _, ok := f.coupons[code]; !ok {
		return apperror.NotFound("coupon not found", nil)
	}
	delete(f.coupons, code)
	return nil
}

func (f *fakeCouponRepo) List(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Coupon
	for _, c := range f.coupons {
		out = append(out, c)
	}
	return out, nil
}

// ----- customers -----

type fakeCustomerRepo struct {
	mu         sync.Mutex
	customers  map[uuid.UUID]*models.Customer
	createdAts []time.Time
	createdErr error
	pointsErr  error
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*models.Customer)}
}

func (f *fakeCustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.customers {
		if existing.Email == c.Email {
			return apperror.Conflict("customer with this email already exists", nil)
		}
	}
	cp := *c
	f.customers[c.ID] = &cp
	return nil
}

func (f *fakeCustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, apperror.NotFound("customer not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomerRepo) CreatedAts(ctx context.Context) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createdErr != nil {
		return nil, f.createdErr
	}
	return f.createdAts, nil
}

func (f *fakeCustomerRepo) AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pointsErr != nil {
		return 0, f.pointsErr
	}
	c, ok := f.customers[id]
	if !ok {
		c = &models.Customer{ID: id}
		f.customers[id] = c
	}
	c.Points += delta
	return c.Points, nil
}

// ----- locations -----

type fakeLocationRepo struct {
	mu        sync.Mutex
	locations map[uuid.UUID]*models.Location
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{locations: make(map[uuid.UUID]*models.Location)}
}

func (f *fakeLocationRepo) Create(ctx context.Context, loc *models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc.IsDefault {
		f.resetDefault(loc.CustomerID)
	}
	cp := *loc
	f.locations[loc.ID] = &cp
	return nil
}

func (f *fakeLocationRepo) Get(ctx context.Context, customerID, id uuid.UUID) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[id]
	if !ok || loc.CustomerID != customerID {
		return nil, apperror.NotFound("location not found", nil)
	}
	cp := *loc
	return &cp, nil
}

func (f *fakeLocationRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Location
	for _, loc := range f.locations {
		if loc.CustomerID == customerID {
			cp := *loc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLocationRepo) Delete(ctx context.Context, customerID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[id]
	if !ok || loc.CustomerID != customerID {
		return apperror.NotFound("location not found", nil)
	}
	delete(f.locations, id)
	return nil
}

func (f *fakeLocationRepo) SetDefault(ctx context.Context, customerID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[id]
	if !ok || loc.CustomerID != customerID {
		return apperror.NotFound("location not found", nil)
	}
	f.resetDefault(customerID)
	loc.IsDefault = true
	return nil
}

func (f *fakeLocationRepo) resetDefault(customerID uuid.UUID) {
	for _, loc := range f.locations {
		if loc.CustomerID == customerID {
			loc.IsDefault = false
		}
	}
}

// ----- reviews, devices, spins -----

type fakeReviewRepo struct {
	mu        sync.Mutex
	reviews   []*models.Review
	createErr error
}

func (f *fakeReviewRepo) Create(ctx context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *review
	f.reviews = append(f.reviews, &cp)
	return nil
}

func (f *fakeReviewRepo) ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Review
	for i := len(f.reviews) - 1; i >= 0; i-- {
		if f.reviews[i].ProductID == productID {
			out = append(out, f.reviews[i])
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) Summary(ctx context.Context, productID uuid.UUID) (*models.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &models.RatingSummary{}
	total := 0
	for _, r := range f.reviews {
		if r.ProductID == productID {
			summary.Count++
			total += r.Rating
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	tokens  map[uuid.UUID][]string
	upserts int
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{tokens: make(map[uuid.UUID][]string)}
}

func (f *fakeDeviceRepo) Upsert(ctx context.Context, d *models.DeviceToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for _, tok := range f.tokens[d.CustomerID] {
		if tok == d.Token {
			return nil
		}
	}
	f.tokens[d.CustomerID] = append(f.tokens[d.CustomerID], d.Token)
	return nil
}

func (f *fakeDeviceRepo) Delete(ctx context.Context, customerID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tokens[customerID][:0]
	found := false
	for _, tok := range f.tokens[customerID] {
		if tok == token {
			found = true
			continue
		}
		kept = append(kept, tok)
	}
	f.tokens[customerID] = kept
	if !found {
		return apperror.NotFound("device not found", nil)
	}
	return nil
}

func (f *fakeDeviceRepo) Tokens(ctx context.Context, customerID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens[customerID]...), nil
}

type fakeSpinRepo struct {
	mu      sync.Mutex
	records []models.SpinResult
}

func (f *fakeSpinRepo) Record(ctx context.Context, customerID uuid.UUID, result *models.SpinResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *result)
	return nil
}

// ----- infrastructure -----

type fakeEvents struct {
	mu            sync.Mutex
	created       []uuid.UUID
	statusChanges []models.OrderStatus
	redeemed      []string
	payments      []models.EventType
	notifications []models.NotificationData
	err           error
}

func (f *fakeEvents) PublishOrderCreated(order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, order.ID)
	return f.err
}

func (f *fakeEvents) PublishOrderStatusChanged(orderID, customerID uuid.UUID, oldStatus, newStatus models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges = append(f.statusChanges, newStatus)
	return f.err
}

func (f *fakeEvents) PublishCouponRedeemed(code string, orderID uuid.UUID, discount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed = append(f.redeemed, code)
	return f.err
}

func (f *fakeEvents) PublishPaymentEvent(eventType models.EventType, data models.PaymentEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, eventType)
	return f.err
}

func (f *fakeEvents) PublishNotification(data models.NotificationData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, data)
	return f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []uuid.UUID
}

func (f *fakeNotifier) Notify(orderID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, orderID)
}

type fakeImageStore struct {
	uploads []string
	deleted []string
	err     error
}

func (f *fakeImageStore) DeleteByURL(ctx context.Context, rawURL string) error {
	f.deleted = append(f.deleted, rawURL)
	return nil
}

func (f *fakeImageStore) PresignByURL(ctx context.Context, rawURL string, expiry time.Duration) (string, error) {
	return rawURL + "?expires=" + expiry.String(), nil
}

func (f *fakeImageStore) Upload(ctx context.Context, prefix, filename, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	url := "http://images.local/bucket/" + prefix + "/" + filename
	f.uploads = append(f.uploads, url)
	return url, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	intents   map[string]*models.PaymentIntent
	requests  []payment.IntentRequest
	webhook   *payment.WebhookEvent
	parseErr  error
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*models.PaymentIntent)}
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.requests = append(f.requests, req)
	metadata := map[string]string{payment.MetadataCustomerID: req.CustomerID}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	intent := &models.PaymentIntent{
		ID:           "pi_" + req.IdempotencyKey[len(req.IdempotencyKey)-8:],
		ClientSecret: "secret",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Status:       models.PaymentIntentRequiresMethod,
		Metadata:     metadata,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakeGateway) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok {
		return nil, apperror.NotFound("payment intent not found", nil)
	}
	cp := *intent
	return &cp, nil
}

func (f *fakeGateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.webhook, nil
}

func (f *fakeGateway) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = models.PaymentIntentSucceeded
}

var errBackend = errors.New("backend unavailable")
