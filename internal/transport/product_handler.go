package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the body of product create and update. Update replaces every field.
type ProductRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Quantity    *int             `json:"quantity" validate:"required,gte=0"`
	Category    string           `json:"category" validate:"max=50"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url,max=500"`
}

func (req ProductRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Quantity:    *req.Quantity,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers catalog routes. Reads are public, writes need ADMIN.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/categories", h.Categories)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns products matching the optional search and category query parameters
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ProductFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}

	products, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err, "Failed to list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Categories returns the distinct product categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// Get returns a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create adds a product to the catalog
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalog.Create(r.Context(), identity, req.input())
	if err != nil {
		respondError(w, h.logger, err, "Failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces a product's mutable fields
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalog.Update(r.Context(), identity, id, req.input())
	if err != nil {
		respondError(w, h.logger, err, "Failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product. Orders referencing it keep their snapshots.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requestIdentity(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), identity, id); err != nil {
		respondError(w, h.logger, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
