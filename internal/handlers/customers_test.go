package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/models"

	"github.com/google/uuid"
)

type stubCustomerService struct {
	customer     *models.Customer
	location     *models.Location
	locations    []*models.Location
	err          error
	deletedID    uuid.UUID
	defaultID    uuid.UUID
	gotLocation  *models.CreateLocationRequest
	registerCall int
}

func (s *stubCustomerService) Register(ctx context.Context, req *models.RegisterCustomerRequest) (*models.Customer, error) {
	s.registerCall++
	return s.customer, s.err
}
func (s *stubCustomerService) GetProfile(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	return s.customer, s.err
}
func (s *stubCustomerService) AddLocation(ctx context.Context, customerID uuid.UUID, req *models.CreateLocationRequest) (*models.Location, error) {
	s.gotLocation = req
	return s.location, s.err
}
func (s *stubCustomerService) ListLocations(ctx context.Context, customerID uuid.UUID) ([]*models.Location, error) {
	return s.locations, s.err
}
func (s *stubCustomerService) DeleteLocation(ctx context.Context, customerID, locationID uuid.UUID) error {
	s.deletedID = locationID
	return s.err
}
func (s *stubCustomerService) SetDefaultLocation(ctx context.Context, customerID, locationID uuid.UUID) error {
	s.defaultID = locationID
	return s.err
}

type stubFavoriteService struct {
	products []models.Product
	added    uuid.UUID
	removed  uuid.UUID
	err      error
}

func (s *stubFavoriteService) Add(ctx context.Context, customerID, productID uuid.UUID) error {
	s.added = productID
	return s.err
}
func (s *stubFavoriteService) Remove(ctx context.Context, customerID, productID uuid.UUID) error {
	s.removed = productID
	return s.err
}
func (s *stubFavoriteService) List(ctx context.Context, customerID uuid.UUID) ([]models.Product, error) {
	return s.products, s.err
}

type stubDeviceService struct {
	device  *models.DeviceToken
	removed string
	err     error
}

func (s *stubDeviceService) RegisterDevice(ctx context.Context, customerID uuid.UUID, req *models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	return s.device, s.err
}
func (s *stubDeviceService) UnregisterDevice(ctx context.Context, customerID uuid.UUID, token string) error {
	s.removed = token
	return s.err
}

type stubIssuer struct {
	role string
	err  error
}

func (s *stubIssuer) GenerateToken(customerID uuid.UUID, role string) (string, error) {
	s.role = role
	return "token-" + customerID.String(), s.err
}

func newCustomerHandler(customers *stubCustomerService, favorites *stubFavoriteService, devices *stubDeviceService, issuer *stubIssuer) *CustomerHandler {
	return NewCustomerHandler(customers, favorites, devices, issuer, newTestLogger())
}

func TestCustomerHandler_RegisterIssuesCustomerToken(t *testing.T) {
	customer := &models.Customer{ID: uuid.New(), Name: "Ann", Email: "ann@example.com"}
	issuer := &stubIssuer{}
	h := newCustomerHandler(&stubCustomerService{customer: customer}, &stubFavoriteService{}, &stubDeviceService{}, issuer)

	req := httptest.NewRequest(http.MethodPost, "/api/customers", jsonBody(t, models.RegisterCustomerRequest{Name: "Ann", Email: "ann@example.com"}))
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var resp RegistrationResponse
	decodeBody(t, rr, &resp)
	if resp.Token != "token-"+customer.ID.String() || resp.Customer.Email != "ann@example.com" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if issuer.role != "customer" {
		t.Fatalf("expected customer role, got %q", issuer.role)
	}
}

func TestCustomerHandler_RegisterErrors(t *testing.T) {
	h := newCustomerHandler(&stubCustomerService{err: apperror.Conflict("email already registered", nil)}, &stubFavoriteService{}, &stubDeviceService{}, &stubIssuer{})
	rr := httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/customers", jsonBody(t, models.RegisterCustomerRequest{Name: "A", Email: "a@b.c"})))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	h = newCustomerHandler(&stubCustomerService{customer: &models.Customer{ID: uuid.New()}}, &stubFavoriteService{}, &stubDeviceService{}, &stubIssuer{err: errors.New("signing failed")})
	rr = httptest.NewRecorder()
	h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/customers", jsonBody(t, models.RegisterCustomerRequest{Name: "A", Email: "a@b.c"})))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when token issuance fails, got %d", rr.Code)
	}
}

func TestCustomerHandler_Profile(t *testing.T) {
	h := newCustomerHandler(&stubCustomerService{customer: &models.Customer{Name: "Ann", Points: 40}}, &stubFavoriteService{}, &stubDeviceService{}, &stubIssuer{})

	rr := httptest.NewRecorder()
	h.Profile(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Profile(rr, withCustomer(httptest.NewRequest(http.MethodGet, "/api/me", nil), uuid.New()))
	var customer models.Customer
	decodeBody(t, rr, &customer)
	if customer.Points != 40 {
		t.Fatalf("unexpected profile %+v", customer)
	}
}

func TestCustomerHandler_Locations(t *testing.T) {
	customers := &stubCustomerService{location: &models.Location{Label: "Home"}, locations: []*models.Location{{Label: "Home"}}}
	h := newCustomerHandler(customers, &stubFavoriteService{}, &stubDeviceService{}, &stubIssuer{})
	customerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/me/locations", jsonBody(t, models.CreateLocationRequest{Label: "Home", Address: "1 Main St", IsDefault: true}))
	rr := httptest.NewRecorder()
	h.Locations(rr, withCustomer(req, customerID))
	if rr.Code != http.StatusCreated || customers.gotLocation == nil || !customers.gotLocation.IsDefault {
		t.Fatalf("expected created location, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Locations(rr, withCustomer(httptest.NewRequest(http.MethodGet, "/api/me/locations", nil), customerID))
	var list []models.Location
	decodeBody(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("expected one location, got %d", len(list))
	}

	locationID := uuid.New()
	rr = httptest.NewRecorder()
	h.Location(rr, withCustomer(httptest.NewRequest(http.MethodPut, "/api/me/locations/"+locationID.String()+"/default", nil), customerID))
	if rr.Code != http.StatusOK || customers.defaultID != locationID {
		t.Fatalf("expected default set, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Location(rr, withCustomer(httptest.NewRequest(http.MethodDelete, "/api/me/locations/"+locationID.String(), nil), customerID))
	if rr.Code != http.StatusNoContent || customers.deletedID != locationID {
		t.Fatalf("expected delete, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Location(rr, withCustomer(httptest.NewRequest(http.MethodDelete, "/api/me/locations/"+locationID.String()+"/default", nil), customerID))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCustomerHandler_Favorites(t *testing.T) {
	favorites := &stubFavoriteService{products: []models.Product{{Name: "Pear"}}}
	h := newCustomerHandler(&stubCustomerService{}, favorites, &stubDeviceService{}, &stubIssuer{})
	productID := uuid.New()

	rr := httptest.NewRecorder()
	h.Favorite(rr, withCustomer(httptest.NewRequest(http.MethodPut, "/api/me/favorites/"+productID.String(), nil), uuid.New()))
	if rr.Code != http.StatusNoContent || favorites.added != productID {
		t.Fatalf("expected add, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Favorite(rr, withCustomer(httptest.NewRequest(http.MethodDelete, "/api/me/favorites/"+productID.String(), nil), uuid.New()))
	if rr.Code != http.StatusNoContent || favorites.removed != productID {
		t.Fatalf("expected remove, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Favorites(rr, withCustomer(httptest.NewRequest(http.MethodGet, "/api/me/favorites", nil), uuid.New()))
	var products []models.Product
	decodeBody(t, rr, &products)
	if len(products) != 1 || products[0].Name != "Pear" {
		t.Fatalf("unexpected favorites %+v", products)
	}
}

func TestCustomerHandler_Devices(t *testing.T) {
	devices := &stubDeviceService{device: &models.DeviceToken{Token: "abc", Platform: models.DevicePlatformIOS}}
	h := newCustomerHandler(&stubCustomerService{}, &stubFavoriteService{}, devices, &stubIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/api/me/devices", jsonBody(t, models.RegisterDeviceRequest{Token: "abc", Platform: models.DevicePlatformIOS}))
	rr := httptest.NewRecorder()
	h.RegisterDevice(rr, withCustomer(req, uuid.New()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.UnregisterDevice(rr, withCustomer(httptest.NewRequest(http.MethodDelete, "/api/me/devices/abc%3A1", nil), uuid.New()))
	if rr.Code != http.StatusNoContent || devices.removed != "abc:1" {
		t.Fatalf("expected unescaped token removal, code=%d token=%q", rr.Code, devices.removed)
	}
}
