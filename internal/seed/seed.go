// Package seed fills an empty store with demo accounts and products.
package seed

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	username string
	email    string
	password string
	role     domain.Role
}

var accounts = []account{
	{"admin", "admin@portfolio.com", "admin123", domain.RoleAdmin},
	{"mario", "mario@example.com", "mario123", domain.RoleUser},
}

var products = []domain.ProductInput{
	{
		Name:        "MacBook Pro M3",
		Description: `14" Apple laptop with M3 chip, 16GB RAM, 512GB SSD`,
		Price:       decimal.RequireFromString("2299.00"),
		Quantity:    15,
		Category:    "Electronics",
	},
	{
		Name:        "Nike Air Max 2024",
		Description: "Running shoes with Air Max Next cushioning",
		Price:       decimal.RequireFromString("189.99"),
		Quantity:    50,
		Category:    "Footwear",
	},
	{
		Name:        `Samsung 4K OLED 55"`,
		Description: "Ultra HD OLED smart TV with HDR10+ and Dolby Atmos",
		Price:       decimal.RequireFromString("1499.00"),
		Quantity:    8,
		Category:    "Electronics",
	},
	{
		Name:        "Sony WH-1000XM5",
		Description: "Wireless headphones with active noise cancelling",
		Price:       decimal.RequireFromString("349.00"),
		Quantity:    25,
		Category:    "Electronics",
	},
	{
		Name:        "Dyson V15 Detect",
		Description: "Cordless vacuum with a laser that reveals invisible dust",
		Price:       decimal.RequireFromString("749.00"),
		Quantity:    12,
		Category:    "Home Appliances",
	},
	{
		Name:        "LEGO Technic Ferrari",
		Description: "Technic Ferrari SF90 Stradale set, 1677 pieces",
		Price:       decimal.RequireFromString("219.99"),
		Quantity:    30,
		Category:    "Toys",
	},
}

// Run seeds users when there are none and products when there are none.
// Each table is checked on its own, so a partially seeded store is completed.
func Run(ctx context.Context, users repository.UserRepository, catalog repository.ProductRepository, logger *zap.Logger) error {
	userCount, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if userCount == 0 {
		for _, a := range accounts {
			if err := createAccount(ctx, users, a); err != nil {
				return err
			}
		}
		logger.Info("Users seeded", zap.Int("count", len(accounts)), zap.String("admin", accounts[0].email))
	}

	productCount, err := catalog.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if productCount == 0 {
		for _, in := range products {
			now := time.Now().UTC()
			p := &domain.Product{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
			in.Apply(p)
			if err := catalog.Create(ctx, p); err != nil {
				return fmt.Errorf("failed to seed product %q: %w", in.Name, err)
			}
		}
		logger.Info("Products seeded", zap.Int("count", len(products)))
	}

	return nil
}

func createAccount(ctx context.Context, users repository.UserRepository, a account) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     a.username,
		Email:        a.email,
		PasswordHash: string(hash),
		Role:         a.role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to seed user %q: %w", a.username, err)
	}
	return nil
}
