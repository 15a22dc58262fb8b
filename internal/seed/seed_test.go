package seed

import (
	"context"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestRunSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, Run(ctx, store.Users(), store.Products(), zap.NewNop()))

	admin, err := store.Users().FindByEmail(ctx, "admin@portfolio.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))

	mario, err := store.Users().FindByEmail(ctx, "mario@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, mario.Role)

	list, err := store.Products().List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 6)

	categories, err := store.Products().Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Electronics", "Footwear", "Home Appliances", "Toys"}, categories)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, Run(ctx, store.Users(), store.Products(), zap.NewNop()))
	require.NoError(t, Run(ctx, store.Users(), store.Products(), zap.NewNop()))

	users, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	products, err := store.Products().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, products)
}
