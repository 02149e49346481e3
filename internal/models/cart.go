package models

import "github.com/google/uuid"

// Cart корзина покупателя, хранится в Redis.
// CheckoutID выдается при создании корзины и меняется после каждого оформленного заказа.
type Cart struct {
	CustomerID uuid.UUID  `json:"customer_id"`
	CheckoutID uuid.UUID  `json:"checkout_id"`
	Items      []CartItem `json:"items"`
}

// CartItem позиция корзины
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CartItemRequest запрос на изменение позиции
type CartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}
