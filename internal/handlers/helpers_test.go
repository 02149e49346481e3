package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/logger"

	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

// withCustomer кладёт в запрос claims покупателя
func withCustomer(req *http.Request, customerID uuid.UUID) *http.Request {
	claims := &auth.Claims{CustomerID: customerID, Role: auth.RoleCustomer}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func withAdmin(req *http.Request) *http.Request {
	claims := &auth.Claims{CustomerID: uuid.New(), Role: auth.RoleAdmin}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rr.Body.String())
	}
}
