package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService defines the interface for product catalog business logic.
// Reads are public; every mutation requires ADMIN.
type CatalogService interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, identity domain.Identity, in domain.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, identity domain.Identity, id uuid.UUID, in domain.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, identity domain.Identity, id uuid.UUID) error
}

type catalogService struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository, logger *zap.Logger) CatalogService {
	return &catalogService{
		products: products,
		logger:   logger,
	}
}

func (s *catalogService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.products.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Create adds a product to the catalog
func (s *catalogService) Create(ctx context.Context, identity domain.Identity, in domain.ProductInput) (*domain.Product, error) {
	if err := auth.RequireRole(identity, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Apply(product)

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("quantity", product.Quantity),
		zap.String("admin_id", identity.ID.String()),
	)
	return product, nil
}

// Update replaces every mutable field of a product
func (s *catalogService) Update(ctx context.Context, identity domain.Identity, id uuid.UUID, in domain.ProductInput) (*domain.Product, error) {
	if err := auth.RequireRole(identity, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:        id,
		UpdatedAt: time.Now().UTC(),
	}
	in.Apply(product)

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated",
		zap.String("product_id", id.String()),
		zap.Int("quantity", product.Quantity),
		zap.String("admin_id", identity.ID.String()),
	)
	return product, nil
}

// Delete removes a product. Existing orders keep their snapshots.
func (s *catalogService) Delete(ctx context.Context, identity domain.Identity, id uuid.UUID) error {
	if err := auth.RequireRole(identity, domain.RoleAdmin); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("admin_id", identity.ID.String()),
	)
	return nil
}
