package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *apiFixture) placeOrder(t *testing.T, token string, productID uuid.UUID, quantity int) *domain.Order {
	t.Helper()
	w := f.do(http.MethodPost, "/api/orders", token, CreateOrderRequest{ProductID: productID.String(), Quantity: quantity})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var o domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
	return &o
}

func (f *apiFixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	w := f.do(http.MethodGet, "/api/products/"+productID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p.Quantity
}

func (f *apiFixture) setStatus(token string, orderID uuid.UUID, status string) *httptest.ResponseRecorder {
	return f.do(http.MethodPut, "/api/orders/"+orderID.String()+"/status", token, UpdateStatusRequest{Status: status})
}

func TestCreateOrder(t *testing.T) {
	f := newAPIFixture(t)
	userToken := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	p := f.createProduct(t, "Quattro Formaggi", "pizza", "12.50", 5)

	o := f.placeOrder(t, userToken, p.ID, 2)

	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, "Quattro Formaggi", o.ProductName)
	assert.True(t, decimal.RequireFromString("25.00").Equal(o.TotalPrice))
	assert.Equal(t, 3, f.stock(t, p.ID))
}

func TestCreateOrderFailures(t *testing.T) {
	f := newAPIFixture(t)
	userToken := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	p := f.createProduct(t, "Boscaiola", "pizza", "9.00", 1)

	w := f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: p.ID.String(), Quantity: 2})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, middleware.KindInsufficientStock, decodeError(t, w).Kind)

	w = f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: uuid.NewString(), Quantity: 1})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, middleware.KindNotFound, decodeError(t, w).Kind)

	w = f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: p.ID.String(), Quantity: 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, middleware.KindInvalidInput, decodeError(t, w).Kind)

	w = f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: "nope", Quantity: 1})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/orders", "", CreateOrderRequest{ProductID: p.ID.String(), Quantity: 1})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, 1, f.stock(t, p.ID), "failed orders never touch stock")
}

func TestCreateOrderRejectsOversizedTotal(t *testing.T) {
	f := newAPIFixture(t)
	userToken := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	p := f.createProduct(t, "Tartufo", "pizza", "9999999999.99", 5000)

	w := f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: p.ID.String(), Quantity: 1000})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, middleware.KindInvalidInput, decodeError(t, w).Kind)

	w = f.do(http.MethodPost, "/api/orders", userToken, CreateOrderRequest{ProductID: p.ID.String(), Quantity: 1 << 40})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	assert.Equal(t, 5000, f.stock(t, p.ID))
}

func TestConcurrentOrdersForLastUnit(t *testing.T) {
	f := newAPIFixture(t)
	p := f.createProduct(t, "Ultima", "pizza", "15.00", 1)

	const buyers = 8
	tokens := make([]string, buyers)
	for i := range tokens {
		tokens[i] = f.seedUser(t, "buyer"+uuid.NewString()[:8], uuid.NewString()+"@example.com", domain.RoleUser)
	}

	codes := make([]int, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = f.do(http.MethodPost, "/api/orders", tokens[i], CreateOrderRequest{ProductID: p.ID.String(), Quantity: 1}).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestOrderVisibility(t *testing.T) {
	f := newAPIFixture(t)
	mario := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	luigi := f.seedUser(t, "luigi", "luigi@example.com", domain.RoleUser)
	p := f.createProduct(t, "Napoli", "pizza", "8.00", 10)

	o := f.placeOrder(t, mario, p.ID, 1)
	f.placeOrder(t, luigi, p.ID, 1)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/orders/"+o.ID.String(), mario, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/orders/"+o.ID.String(), f.adminToken, nil).Code)

	w := f.do(http.MethodGet, "/api/orders/"+o.ID.String(), luigi, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, middleware.KindForbidden, decodeError(t, w).Kind)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/orders/"+uuid.NewString(), mario, nil).Code)

	var mine []domain.Order
	w = f.do(http.MethodGet, "/api/orders/my", mario, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/orders", mario, nil).Code)

	var all []domain.Order
	w = f.do(http.MethodGet, "/api/orders", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestOrderStatusLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	mario := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	p := f.createProduct(t, "Prosciutto", "pizza", "10.00", 5)
	o := f.placeOrder(t, mario, p.ID, 3)

	w := f.setStatus(mario, o.ID, "CONFIRMED")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.setStatus(f.adminToken, o.ID, "confirmed")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.setStatus(f.adminToken, o.ID, "DELIVERED")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, middleware.KindInvalidTransition, decodeError(t, w).Kind)

	w = f.setStatus(f.adminToken, o.ID, "LOST")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, middleware.KindInvalidInput, decodeError(t, w).Kind)

	var filtered []domain.Order
	w = f.do(http.MethodGet, "/api/orders?status=CONFIRMED", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	assert.Len(t, filtered, 1)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/orders?status=LOST", f.adminToken, nil).Code)

	assert.Equal(t, 2, f.stock(t, p.ID))
	w = f.setStatus(f.adminToken, o.ID, "CANCELLED")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, f.stock(t, p.ID), "cancellation releases the reserved quantity")

	w = f.setStatus(f.adminToken, o.ID, "PENDING")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeletedProductKeepsOrderHistory(t *testing.T) {
	f := newAPIFixture(t)
	mario := f.seedUser(t, "mario", "mario@example.com", domain.RoleUser)
	p := f.createProduct(t, "Stagionale", "pizza", "14.00", 3)
	o := f.placeOrder(t, mario, p.ID, 1)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/products/"+p.ID.String(), f.adminToken, nil).Code)

	w := f.do(http.MethodGet, "/api/orders/"+o.ID.String(), mario, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Stagionale", got.ProductName)
	assert.True(t, decimal.RequireFromString("14.00").Equal(got.TotalPrice))

	type productView struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	var single struct {
		Product *productView `json:"product"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &single))
	require.NotNil(t, single.Product, "order body: %s", w.Body.String())
	assert.Equal(t, p.ID.String(), single.Product.ID)
	assert.Equal(t, "Stagionale", single.Product.Name)
	assert.True(t, decimal.RequireFromString("14.00").Equal(single.Product.Price))

	w = f.do(http.MethodGet, "/api/orders/my", mario, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []struct {
		Product *productView `json:"product"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Product)
	assert.Equal(t, "Stagionale", mine[0].Product.Name)
}

func TestProperty_InvalidCredentialsAlwaysUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Now()

	expired := func(role string) string {
		claims := auth.Claims{
			UserID:   uuid.NewString(),
			Username: "ghost",
			Role:     role,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
		}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		return token
	}

	foreign := func(role string) string {
		claims := auth.Claims{
			UserID:   uuid.NewString(),
			Username: "ghost",
			Role:     role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
		return token
	}

	paths := []string{"/api/orders/my", "/api/orders", "/api/auth/me"}

	properties := gopter.NewProperties(nil)
	properties.Property("expired or foreign tokens yield 401 on every protected route", prop.ForAll(
		func(role string, pathIdx int, useExpired bool) bool {
			token := foreign(role)
			if useExpired {
				token = expired(role)
			}
			w := f.do(http.MethodGet, paths[pathIdx], token, nil)
			return w.Code == http.StatusUnauthorized
		},
		gen.OneConstOf("USER", "ADMIN"),
		gen.IntRange(0, len(paths)-1),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
