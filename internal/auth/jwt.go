package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Роли
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Claims содержимое access-токена
type Claims struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Role       string    `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin сообщает, что токен выдан администратору
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Service выпускает и проверяет HS256-токены
type Service struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
}

// NewService создает сервис токенов
func NewService(secretKey, issuer string, tokenDuration time.Duration) *Service {
	return &Service{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}
}

// GenerateToken выпускает токен для покупателя
func (s *Service) GenerateToken(customerID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		CustomerID: customerID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken проверяет подпись, срок и издателя
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CustomerID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

type ctxKey struct{}

// WithClaims кладет claims в контекст запроса
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// FromContext достает claims из контекста
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok && claims != nil
}
