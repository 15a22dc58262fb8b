package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a fulfillment state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// transitions lists the legal targets of every status. Terminal states map to nothing.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: nil,
	OrderStatusCancelled: nil,
}

// ParseOrderStatus parses a status name case-insensitively
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
	}
	return status, nil
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether s -> to is in the transition table
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ReleasesStock reports whether entering s returns the order's quantity to stock.
// Only cancellation does; cancellable orders have not shipped yet.
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderStatusCancelled
}

// CheckTransition returns ErrInvalidTransition unless from -> to is legal
func CheckTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Order is a single-product purchase. Everything but Status is immutable.
type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"userId" db:"user_id"`
	ProductID   uuid.UUID       `json:"productId" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"totalPrice" db:"total_price"`
	Status      OrderStatus     `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// MaxOrderTotal is the exclusive upper bound of an order total, NUMERIC(14,2)
var MaxOrderTotal = decimal.New(1, 12)

// ProductSnapshot is the product as it was when the order was placed
type ProductSnapshot struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Product returns the snapshot taken at placement. It stays valid after
// the product is edited or deleted.
func (o *Order) Product() ProductSnapshot {
	return ProductSnapshot{ID: o.ProductID, Name: o.ProductName, Price: o.UnitPrice}
}

// MarshalJSON adds the nested product snapshot next to the flat fields
func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Product ProductSnapshot `json:"product"`
	}{order(o), o.Product()})
}

// NewOrder builds a PENDING order for the given owner and product reference.
// Price snapshots are taken by Price once stock has been reserved.
func NewOrder(userID, productID uuid.UUID, quantity int) (*Order, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	}
	if quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: quantity must be at most %d", ErrInvalidInput, MaxQuantity)
	}
	now := time.Now().UTC()
	return &Order{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Price snapshots the product's current name and unit price onto the order.
// The order is left untouched when the total would not fit an order row.
func (o *Order) Price(p *Product) error {
	total := LineTotal(p.Price, o.Quantity)
	if !total.LessThan(MaxOrderTotal) {
		return fmt.Errorf("%w: order total must be less than %s", ErrInvalidInput, MaxOrderTotal)
	}
	o.ProductName = p.Name
	o.UnitPrice = p.Price
	o.TotalPrice = total
	return nil
}

// LineTotal is unit price times quantity at currency scale
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(PriceScale)
}

// OwnedBy reports whether the order belongs to the given user
func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// OrderFilter narrows an order listing. Zero values match everything.
type OrderFilter struct {
	UserID *uuid.UUID
	Status OrderStatus
}

// Matches reports whether o satisfies the filter
func (f OrderFilter) Matches(o *Order) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}
