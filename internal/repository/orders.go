package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
)

const orderColumns = `id, customer_id, subtotal, discount_amount, shipping_fee, total_amount, coupon_code, payment_intent_id, location_id, status, created_at, updated_at`

// OrderRepository заказы, их позиции и история статусов
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository создает репозиторий заказов
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(&o.ID, &o.CustomerID, &o.Subtotal, &o.DiscountAmount, &o.ShippingFee, &o.TotalAmount,
		&o.CouponCode, &o.PaymentIntentID, &o.LocationID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create сохраняет заказ, позиции, первую запись истории и погашает купон в одной транзакции.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO orders (id, customer_id, subtotal, discount_amount, shipping_fee, total_amount, coupon_code, payment_intent_id, location_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query, order.ID, order.CustomerID, order.Subtotal, order.DiscountAmount,
		order.ShippingFee, order.TotalAmount, order.CouponCode, order.PaymentIntentID, order.LocationID,
		order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("order already exists for payment intent", err)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery, uuid.New(), order.ID, i, item.ProductID,
			item.ProductName, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	for _, entry := range order.StatusHistory {
		if err := insertStatusEntry(ctx, tx, order.ID, entry); err != nil {
			return err
		}
	}

	if order.CouponCode != nil && *order.CouponCode != "" {
		if err := redeemCoupon(ctx, tx, *order.CouponCode); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertStatusEntry(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, entry models.StatusEntry) error {
	query := `INSERT INTO order_status_history (order_id, status, note, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, orderID, entry.Status, entry.Note, entry.Timestamp); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// StatusCheck проверяет допустимость перехода из текущего статуса
type StatusCheck func(current models.OrderStatus) error

// UpdateStatus блокирует строку заказа, проверяет переход, меняет статус и дописывает историю.
// Существующие записи истории не изменяются. Возвращает предыдущий статус и владельца заказа.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, entry models.StatusEntry, check StatusCheck) (models.OrderStatus, uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current    models.OrderStatus
		customerID uuid.UUID
	)
	err = tx.QueryRowContext(ctx, `SELECT status, customer_id FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&current, &customerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", uuid.Nil, apperror.NotFound("order not found", err)
		}
		return "", uuid.Nil, fmt.Errorf("failed to lock order: %w", err)
	}

	if check != nil {
		if err := check(current); err != nil {
			return "", uuid.Nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		entry.Status, entry.Timestamp, orderID); err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := insertStatusEntry(ctx, tx, orderID, entry); err != nil {
		return "", uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return current, customerID, nil
}

// GetByID возвращает заказ с позициями и историей
func (r *OrderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

// GetByPaymentIntent возвращает заказ, созданный по платежному намерению
func (r *OrderRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, paymentIntentID)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}

	history, err := r.history(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.StatusHistory = history
	return order, nil
}

func (r *OrderRepository) history(ctx context.Context, orderID uuid.UUID) ([]models.StatusEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, note, created_at FROM order_status_history WHERE order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []models.StatusEntry
	for rows.Next() {
		var e models.StatusEntry
		if err := rows.Scan(&e.Status, &e.Note, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status history: %w", err)
	}
	return history, nil
}

// ListByCustomer возвращает заказы покупателя, новые первыми
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, customerID, limit, offset)
}

// ListInRange возвращает заказы с позициями, созданные в [from, to]
func (r *OrderRepository) ListInRange(ctx context.Context, from, to time.Time) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, from, to)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems загружает позиции одним запросом для всех заказов
func (r *OrderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query := `
		SELECT order_id, product_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`
	rows, err := r.db.QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			item    models.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}
	return nil
}
