package services

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/retry"

	"github.com/google/uuid"
)

func productList(n int) []models.Product {
	items := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, testProduct(fmt.Sprintf("item-%d", i), "fruit", 1))
	}
	return items
}

func TestPaginateProducts_FifteenItemsByFive(t *testing.T) {
	items := productList(15)

	first := PaginateProducts(items, 5, "")
	if len(first.Items) != 5 || !first.HasNextPage {
		t.Fatalf("unexpected first page: len=%d next=%v", len(first.Items), first.HasNextPage)
	}

	second := PaginateProducts(items, 5, first.NextCursor)
	if len(second.Items) != 5 || !second.HasNextPage {
		t.Fatalf("unexpected second page: len=%d next=%v", len(second.Items), second.HasNextPage)
	}
	if second.Items[0].ID != items[5].ID {
		t.Fatalf("second page should start after cursor")
	}

	third := PaginateProducts(items, 5, second.NextCursor)
	if len(third.Items) != 5 || third.HasNextPage {
		t.Fatalf("unexpected third page: len=%d next=%v", len(third.Items), third.HasNextPage)
	}
	if third.Items[4].ID != items[14].ID {
		t.Fatalf("third page should end with the last item")
	}
}

func TestPaginateProducts_UnknownCursorStartsOver(t *testing.T) {
	items := productList(3)
	page := PaginateProducts(items, 2, uuid.NewString())
	if len(page.Items) != 2 || page.Items[0].ID != items[0].ID {
		t.Fatalf("expected first page for unknown cursor, got %+v", page)
	}
}

func TestPaginateProducts_EmptyAndClamped(t *testing.T) {
	page := PaginateProducts(nil, 5, "")
	if len(page.Items) != 0 || page.HasNextPage || page.NextCursor != "" {
		t.Fatalf("unexpected empty page %+v", page)
	}

	items := productList(MaxPageSize + 5)
	page = PaginateProducts(items, 1000, "")
	if len(page.Items) != MaxPageSize || !page.HasNextPage {
		t.Fatalf("expected page clamped to %d, got %d", MaxPageSize, len(page.Items))
	}

	page = PaginateProducts(items, 0, "")
	if len(page.Items) != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", len(page.Items))
	}
}

func TestCatalogService_BrowseCategory(t *testing.T) {
	repo := newFakeProductRepo(productList(7)...)
	repo.products = append(repo.products, testProduct("milk", "dairy", 2))
	svc := NewCatalogService(repo, nil, newTestLogger(), retry.Policy{MaxAttempts: 1})

	page, err := svc.BrowseCategory(context.Background(), "fruit", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 5 || !page.HasNextPage {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := svc.BrowseCategory(context.Background(), "  ", 5, ""); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for blank category, got %v", err)
	}
}

func TestCatalogService_BrowseRetriesTransientFailure(t *testing.T) {
	repo := newFakeProductRepo()
	repo.listErr = errBackend
	svc := NewCatalogService(repo, nil, newTestLogger(), retry.Policy{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 2})

	if _, err := svc.BrowseCategory(context.Background(), "fruit", 5, ""); err == nil {
		t.Fatalf("expected error")
	}
	if repo.listHits != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.listHits)
	}
}

func TestCatalogService_CreateProductValidation(t *testing.T) {
	svc := NewCatalogService(newFakeProductRepo(), nil, newTestLogger(), retry.Policy{})

	if _, err := svc.CreateProduct(context.Background(), &models.CreateProductRequest{Name: "x"}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error without category, got %v", err)
	}
	if _, err := svc.CreateProduct(context.Background(), &models.CreateProductRequest{Name: "x", Category: "c", Price: -1}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}

	p, err := svc.CreateProduct(context.Background(), &models.CreateProductRequest{Name: " Apple ", Category: "fruit", Price: 1.005})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Apple" || p.Unit != "pcs" || !p.IsAvailable {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestCatalogService_UploadProductImage(t *testing.T) {
	product := testProduct("apple", "fruit", 1)
	repo := newFakeProductRepo(product)
	images := &fakeImageStore{}
	svc := NewCatalogService(repo, images, newTestLogger(), retry.Policy{})

	url, err := svc.UploadProductImage(context.Background(), product.ID, &models.ImageUpload{
		Filename: "apple.png", ContentType: "image/png", Data: []byte("png"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), product.ID)
	if stored.ImageURL == nil || *stored.ImageURL != url {
		t.Fatalf("expected image url to be saved, got %v", stored.ImageURL)
	}

	if _, err := svc.UploadProductImage(context.Background(), uuid.New(), &models.ImageUpload{}); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestCatalogService_UploadProductImageReplacesPrevious(t *testing.T) {
	product := testProduct("apple", "fruit", 1)
	old := "http://images.local/bucket/products/old.png"
	product.ImageURL = &old
	repo := newFakeProductRepo(product)
	images := &fakeImageStore{}
	svc := NewCatalogService(repo, images, newTestLogger(), retry.Policy{})

	if _, err := svc.UploadProductImage(context.Background(), product.ID, &models.ImageUpload{
		Filename: "new.png", ContentType: "image/png", Data: []byte("png"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.deleted) != 1 || images.deleted[0] != old {
		t.Fatalf("expected previous image to be deleted, got %v", images.deleted)
	}
}

func TestCatalogService_ProductImageLink(t *testing.T) {
	withImage := testProduct("apple", "fruit", 1)
	url := "http://images.local/bucket/products/apple.png"
	withImage.ImageURL = &url
	without := testProduct("pear", "fruit", 1)
	svc := NewCatalogService(newFakeProductRepo(withImage, without), &fakeImageStore{}, newTestLogger(), retry.Policy{})

	link, err := svc.ProductImageLink(context.Background(), withImage.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != url+"?expires="+ImageLinkTTL.String() {
		t.Fatalf("unexpected link %q", link)
	}

	if _, err := svc.ProductImageLink(context.Background(), without.ID); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found for product without image, got %v", err)
	}

	noStorage := NewCatalogService(newFakeProductRepo(withImage), nil, newTestLogger(), retry.Policy{})
	if _, err := noStorage.ProductImageLink(context.Background(), withImage.ID); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error without storage, got %v", err)
	}
}
