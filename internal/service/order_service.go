package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPublishTimeout bounds how long a committed order waits on the broker
const DefaultPublishTimeout = 5 * time.Second

// OrderService defines the interface for the order ledger
type OrderService interface {
	CreateOrder(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.Order, error)
	ListOrders(ctx context.Context, identity domain.Identity, status domain.OrderStatus) ([]*domain.Order, error)
	ListMyOrders(ctx context.Context, identity domain.Identity) ([]*domain.Order, error)
	GetOrder(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, identity domain.Identity, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orders         repository.OrderRepository
	publisher      events.Publisher
	logger         *zap.Logger
	publishTimeout time.Duration
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders repository.OrderRepository, publisher events.Publisher, logger *zap.Logger) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orders:         orders,
		publisher:      publisher,
		logger:         logger,
		publishTimeout: DefaultPublishTimeout,
	}
}

// CreateOrder reserves stock and records a PENDING order for the caller
func (s *orderService) CreateOrder(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.Order, error) {
	if err := auth.RequireRole(identity, domain.RoleUser); err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(identity.ID, productID, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Place(ctx, order); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.RecordStockConflict()
			s.logger.Info("Order rejected",
				zap.String("user_id", identity.ID.String()),
				zap.String("product_id", productID.String()),
				zap.Int("quantity", quantity),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	metrics.RecordOrderCreated(order.Quantity)
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("product_id", order.ProductID.String()),
		zap.Int("quantity", order.Quantity),
		zap.String("total_price", order.TotalPrice.StringFixed(domain.PriceScale)),
	)

	s.publish(ctx, events.NewOrderCreatedEvent(order))
	return order, nil
}

// ListOrders returns every order to an ADMIN, optionally by status, and
// only the caller's own orders to anyone else
func (s *orderService) ListOrders(ctx context.Context, identity domain.Identity, status domain.OrderStatus) ([]*domain.Order, error) {
	if err := auth.RequireRole(identity, domain.RoleUser); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrInvalidInput, status)
	}

	filter := domain.OrderFilter{Status: status}
	if !identity.IsAdmin() {
		filter.UserID = &identity.ID
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListMyOrders returns the caller's orders regardless of role
func (s *orderService) ListMyOrders(ctx context.Context, identity domain.Identity) ([]*domain.Order, error) {
	if err := auth.RequireRole(identity, domain.RoleUser); err != nil {
		return nil, err
	}

	orders, err := s.orders.List(ctx, domain.OrderFilter{UserID: &identity.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns an order to its owner or an ADMIN
func (s *orderService) GetOrder(ctx context.Context, identity domain.Identity, id uuid.UUID) (*domain.Order, error) {
	if err := auth.RequireRole(identity, domain.RoleUser); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !identity.IsAdmin() && !order.OwnedBy(identity.ID) {
		return nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}
	return order, nil
}

// UpdateStatus advances an order through the fulfillment state machine
func (s *orderService) UpdateStatus(ctx context.Context, identity domain.Identity, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if err := auth.RequireRole(identity, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrInvalidInput, status)
	}

	order, from, err := s.orders.TransitionStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	metrics.RecordStatusTransition(string(from), string(order.Status))
	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.Bool("stock_released", order.Status.ReleasesStock()),
		zap.String("admin_id", identity.ID.String()),
	)

	s.publish(ctx, events.NewStatusChangedEvent(order, from))
	return order, nil
}

// publish delivers an event for an already committed change. Failures are
// logged and counted; the change stands.
func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		metrics.RecordEventPublishFailure(event.Type)
		s.logger.Warn("Failed to publish order event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
		)
	}
}
