package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("secret", "storefront", time.Hour)
	id := uuid.New()

	token, err := svc.GenerateToken(id, RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.CustomerID != id || !claims.IsAdmin() {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidate_Expired(t *testing.T) {
	svc := NewService("secret", "storefront", -time.Minute)
	token, _ := svc.GenerateToken(uuid.New(), RoleCustomer)

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	token, _ := NewService("a", "storefront", time.Hour).GenerateToken(uuid.New(), RoleCustomer)
	if _, err := NewService("b", "storefront", time.Hour).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	token, _ := NewService("s", "other", time.Hour).GenerateToken(uuid.New(), RoleCustomer)
	if _, err := NewService("s", "storefront", time.Hour).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{CustomerID: uuid.New(), Role: RoleAdmin}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("s", "", time.Hour).ValidateToken(signed); err == nil {
		t.Fatalf("expected none algorithm to be rejected")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context must not carry claims")
	}
	c := &Claims{CustomerID: uuid.New()}
	got, ok := FromContext(WithClaims(context.Background(), c))
	if !ok || got != c {
		t.Fatalf("claims not found in context")
	}
}
