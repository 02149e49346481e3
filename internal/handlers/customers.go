package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	locationsPrefix = "/api/me/locations/"
	favoritesPrefix = "/api/me/favorites/"
	devicesPrefix   = "/api/me/devices/"
)

// RegistrationResponse профиль нового покупателя и его токен
type RegistrationResponse struct {
	Customer *models.Customer `json:"customer"`
	Token    string           `json:"token"`
}

// CustomerHandler обрабатывает профиль покупателя, адреса, избранное и устройства
type CustomerHandler struct {
	customers CustomerService
	favorites FavoriteService
	devices   DeviceService
	tokens    TokenIssuer
	log       *logger.Logger
}

// NewCustomerHandler создает обработчик покупателей
func NewCustomerHandler(customers CustomerService, favorites FavoriteService, devices DeviceService, tokens TokenIssuer, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		favorites: favorites,
		devices:   devices,
		tokens:    tokens,
		log:       log,
	}
}

// Register создаёт покупателя и выдаёт ему токен
func (h *CustomerHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RegisterCustomerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customer, err := h.customers.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to register customer")
		return
	}

	token, err := h.tokens.GenerateToken(customer.ID, auth.RoleCustomer)
	if err != nil {
		h.log.WithError(err).Error("Failed to issue token")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSONResponse(w, http.StatusCreated, RegistrationResponse{Customer: customer, Token: token})
}

// Profile возвращает профиль текущего покупателя
func (h *CustomerHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	customer, err := h.customers.GetProfile(r.Context(), claims.CustomerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load profile")
		return
	}

	writeJSONResponse(w, http.StatusOK, customer)
}

// Locations: GET список адресов, POST новый адрес
func (h *CustomerHandler) Locations(w http.ResponseWriter, r *http.Request) {
	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		locations, err := h.customers.ListLocations(r.Context(), claims.CustomerID)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to list locations")
			return
		}
		writeJSONResponse(w, http.StatusOK, locations)
	case http.MethodPost:
		var req models.CreateLocationRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		location, err := h.customers.AddLocation(r.Context(), claims.CustomerID, &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to add location")
			return
		}
		writeJSONResponse(w, http.StatusCreated, location)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Location: DELETE /api/me/locations/{id}, PUT /api/me/locations/{id}/default
func (h *CustomerHandler) Location(w http.ResponseWriter, r *http.Request) {
	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	locationID, err := extractUUIDFromPath(r.URL.Path, locationsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid location ID")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/default") && r.Method == http.MethodPut:
		if err := h.customers.SetDefaultLocation(r.Context(), claims.CustomerID, locationID); err != nil {
			writeServiceError(w, h.log, err, "Failed to set default location")
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Default location updated"})
	case !strings.HasSuffix(r.URL.Path, "/default") && r.Method == http.MethodDelete:
		if err := h.customers.DeleteLocation(r.Context(), claims.CustomerID, locationID); err != nil {
			writeServiceError(w, h.log, err, "Failed to delete location")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Favorites возвращает избранные товары
func (h *CustomerHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	products, err := h.favorites.List(r.Context(), claims.CustomerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list favorites")
		return
	}

	writeJSONResponse(w, http.StatusOK, products)
}

// Favorite: PUT добавляет товар в избранное, DELETE убирает
func (h *CustomerHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	productID, err := extractUUIDFromPath(r.URL.Path, favoritesPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPost:
		err = h.favorites.Add(r.Context(), claims.CustomerID, productID)
	case http.MethodDelete:
		err = h.favorites.Remove(r.Context(), claims.CustomerID, productID)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update favorites")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegisterDevice сохраняет push-токен устройства
func (h *CustomerHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	var req models.RegisterDeviceRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	device, err := h.devices.RegisterDevice(r.Context(), claims.CustomerID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to register device")
		return
	}

	writeJSONResponse(w, http.StatusCreated, device)
}

// UnregisterDevice удаляет push-токен
func (h *CustomerHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	token, err := url.PathUnescape(extractSegment(r.URL.EscapedPath(), devicesPrefix))
	if err != nil || token == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid device token")
		return
	}

	if err := h.devices.UnregisterDevice(r.Context(), claims.CustomerID, token); err != nil {
		writeServiceError(w, h.log, err, "Failed to unregister device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
