package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderRepository defines the interface for order data access.
// Place and TransitionStatus are the only operations that touch stock.
type OrderRepository interface {
	Place(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, domain.OrderStatus, error)
}

const orderColumns = `id, user_id, product_id, product_name, quantity, unit_price, total_price, status, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Place reserves stock and inserts the order in one transaction.
// The stock check and decrement are a single conditional update, so two
// concurrent orders can never both take the last unit.
func (r *orderRepository) Place(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reserve := `
		UPDATE products
		SET quantity = quantity - $2, updated_at = $3
		WHERE id = $1 AND quantity >= $2
		RETURNING name, price
	`

	var (
		name  string
		price decimal.Decimal
	)
	err = tx.QueryRowContext(ctx, reserve, order.ProductID, order.Quantity, order.CreatedAt).Scan(&name, &price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.reservationFailure(ctx, tx, order)
		}
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	// Returning here rolls the reservation back
	if err := order.Price(&domain.Product{Name: name, Price: price}); err != nil {
		return err
	}

	insert := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.ExecContext(
		ctx,
		insert,
		order.ID,
		order.UserID,
		order.ProductID,
		order.ProductName,
		order.Quantity,
		order.UnitPrice,
		order.TotalPrice,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", outOfRange(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// reservationFailure tells a missing product apart from a short one
func (r *orderRepository) reservationFailure(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	var available int
	err := tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = $1`, order.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to check stock: %w", err)
	}
	return fmt.Errorf("%w: requested %d, available %d", domain.ErrInsufficientStock, order.Quantity, available)
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// List retrieves orders matching the filter, newest first
func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	conditions := []string{}
	args := []interface{}{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id ASC
	`, orderColumns, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// TransitionStatus moves an order to a new status under a row lock.
// It returns the updated order and the status it left.
// Cancelling returns the order's quantity to the product, if it still exists.
func (r *orderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, domain.OrderStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrOrderNotFound
		}
		return nil, "", fmt.Errorf("failed to lock order: %w", err)
	}

	if err := domain.CheckTransition(order.Status, to); err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, to, now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to update order status: %w", err)
	}

	if to.ReleasesStock() {
		release := `UPDATE products SET quantity = quantity + $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, release, order.ProductID, order.Quantity, now); err != nil {
			return nil, "", fmt.Errorf("failed to release stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("failed to commit status change: %w", err)
	}

	from := order.Status
	order.Status = to
	order.UpdatedAt = now
	return order, from, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ProductID,
		&order.ProductName,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalPrice,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
