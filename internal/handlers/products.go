package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

const (
	productsPrefix      = "/api/products/"
	imageFormField      = "image"
	defaultMaxUploadMB  = 5
	multipartMemoryByte = 8 << 20
)

// ProductHandler обрабатывает каталог, отзывы и рейтинг товаров.
type ProductHandler struct {
	catalog     CatalogService
	reviews     ReviewService
	log         *logger.Logger
	maxUploadMB int
}

// NewProductHandler создает новый обработчик каталога
func NewProductHandler(catalog CatalogService, reviews ReviewService, log *logger.Logger, maxUploadMB int) *ProductHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return &ProductHandler{
		catalog:     catalog,
		reviews:     reviews,
		log:         log,
		maxUploadMB: maxUploadMB,
	}
}

// ListProducts возвращает страницу категории: ?category=&page_size=&cursor=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	pageSize := 0
	if raw := query.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "page_size must be a number")
			return
		}
		pageSize = v
	}

	page, err := h.catalog.BrowseCategory(r.Context(), query.Get("category"), pageSize, query.Get("cursor"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load products")
		return
	}

	writeJSONResponse(w, http.StatusOK, page)
}

// CreateProduct добавляет товар (только администратор)
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateProductRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create product")
		return
	}

	writeJSONResponse(w, http.StatusCreated, product)
}

// GetProduct возвращает товар по ID
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	productID, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get product")
		return
	}

	writeJSONResponse(w, http.StatusOK, product)
}

// Image: GET выдаёт временную ссылку на изображение, POST/PUT загружают новое (администратор)
func (h *ProductHandler) Image(w http.ResponseWriter, r *http.Request) {
	productID, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		link, err := h.catalog.ProductImageLink(r.Context(), productID)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to sign product image")
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"url": link})
	case http.MethodPost, http.MethodPut:
		RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
			h.uploadImage(w, r, productID)
		})(w, r)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ProductHandler) uploadImage(w http.ResponseWriter, r *http.Request, productID uuid.UUID) {
	upload, err := h.readImage(w, r, true)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.catalog.UploadProductImage(r.Context(), productID, upload)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to upload product image")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"image_url": url})
}

// Reviews: GET список отзывов, POST новый отзыв (JSON или multipart с фото)
func (h *ProductHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	productID, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit, offset := parsePagination(r)
		reviews, err := h.reviews.ListReviews(r.Context(), productID, limit, offset)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to list reviews")
			return
		}
		writeJSONResponse(w, http.StatusOK, reviews)
	case http.MethodPost:
		h.createReview(w, r, productID)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ProductHandler) createReview(w http.ResponseWriter, r *http.Request, productID uuid.UUID) {
	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	var (
		req    models.CreateReviewRequest
		upload *models.ImageUpload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		upload, err = h.readImage(w, r, false)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		rating, err := strconv.Atoi(r.FormValue("rating"))
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "rating must be a number")
			return
		}
		req.Rating = rating
		if comment := r.FormValue("comment"); comment != "" {
			req.Comment = &comment
		}
	} else if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), claims.CustomerID, productID, &req, upload)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create review")
		return
	}

	writeJSONResponse(w, http.StatusCreated, review)
}

// Rating возвращает среднюю оценку товара
func (h *ProductHandler) Rating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	productID, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	summary, err := h.reviews.RatingSummary(r.Context(), productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load rating")
		return
	}

	writeJSONResponse(w, http.StatusOK, summary)
}

// readImage читает файл из multipart-формы. Если required=false и файла нет, возвращает nil.
func (h *ProductHandler) readImage(w http.ResponseWriter, r *http.Request, required bool) (*models.ImageUpload, error) {
	maxBytes := int64(h.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemoryByte)
	if err := r.ParseMultipartForm(multipartMemoryByte); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}

	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		if err == http.ErrMissingFile && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image")
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d MB", h.maxUploadMB)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &models.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
