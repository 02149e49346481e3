package handlers

import (
	"net/http"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/logger"
)

// TokenValidator проверяет bearer-токен
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Authenticate разбирает заголовок Authorization и кладёт claims в контекст.
// Запросы без токена проходят дальше анонимно, неверный токен отклоняется.
func Authenticate(validator TokenValidator, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			log.WithError(err).Debug("Rejected bearer token")
			writeErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// RequireCustomer пропускает только аутентифицированные запросы
func RequireCustomer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(w, r)
	}
}

// RequireAdmin пропускает только администраторов
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !claims.IsAdmin() {
			writeErrorResponse(w, http.StatusForbidden, "Admin role required")
			return
		}
		next(w, r)
	}
}
