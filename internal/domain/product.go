package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// PriceScale is the number of fractional digits a price may carry
const PriceScale = 2

// MaxQuantity is the largest stock or order quantity a column can hold
const MaxQuantity = math.MaxInt32

// MaxPrice is the exclusive upper bound of a unit price, NUMERIC(12,2)
var MaxPrice = decimal.New(1, 10)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Category    string          `json:"category,omitempty" db:"category"`
	ImageURL    string          `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductInput carries the mutable fields of a product. Update replaces all of them.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Category    string
	ImageURL    string
}

// Validate enforces the catalog invariants on an input
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if !in.Price.Equal(in.Price.Round(PriceScale)) {
		return fmt.Errorf("%w: price must have at most %d decimal places", ErrInvalidInput, PriceScale)
	}
	if !in.Price.LessThan(MaxPrice) {
		return fmt.Errorf("%w: price must be less than %s", ErrInvalidInput, MaxPrice)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if in.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be at most %d", ErrInvalidInput, MaxQuantity)
	}
	return nil
}

// Apply copies the input fields onto p
func (in ProductInput) Apply(p *Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(PriceScale)
	p.Quantity = in.Quantity
	p.Category = strings.TrimSpace(in.Category)
	p.ImageURL = in.ImageURL
}

// ProductFilter narrows a catalog listing. Empty fields match everything.
type ProductFilter struct {
	Search   string
	Category string
}

// Matches reports whether p satisfies the filter: case-insensitive substring
// on name or description, exact category.
func (f ProductFilter) Matches(p *Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.Description), search)
}
