package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateOrderRequest represents the order placement payload
type CreateOrderRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// UpdateStatusRequest represents the status transition payload
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderHandler handles HTTP requests for the order ledger
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// RegisterRoutes registers order routes. All of them require authentication.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/my", h.ListMine)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/", h.List)
			r.Put("/{id}/status", h.UpdateStatus)
		})
	})
}

// Create places an order for the caller
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	// Validated as a uuid above
	productID := uuid.MustParse(req.ProductID)

	order, err := h.orders.CreateOrder(r.Context(), identity, productID, req.Quantity)
	if err != nil {
		respondError(w, h.logger, err, "Failed to create order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListMine returns the caller's orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.ListMyOrders(r.Context(), identity)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, nonNilOrders(orders))
}

// List returns all orders, optionally narrowed by ?status=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var status domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOrderStatus(raw)
		if err != nil {
			respondError(w, h.logger, err, "Invalid status filter")
			return
		}
		status = parsed
	}

	orders, err := h.orders.ListOrders(r.Context(), identity, status)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, nonNilOrders(orders))
}

// Get returns one order to its owner or an ADMIN
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), identity, id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus moves an order to a new fulfillment status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(w, h.logger, err, "Invalid order status")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), identity, id, status)
	if err != nil {
		respondError(w, h.logger, err, "Failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func nonNilOrders(orders []*domain.Order) []*domain.Order {
	if orders == nil {
		return []*domain.Order{}
	}
	return orders
}
