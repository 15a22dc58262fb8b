package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "transport-test-secret"

type apiFixture struct {
	store      *repository.MemoryStore
	gate       *auth.Gate
	router     chi.Router
	adminToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	gate := auth.NewGate(testSecret, time.Hour)

	router := chi.NewRouter()
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	authMiddleware := middleware.AuthMiddleware(gate, logger)

	NewUserHandler(service.NewUserService(store.Users(), gate, logger), logger).RegisterRoutes(router, authMiddleware)
	NewProductHandler(service.NewCatalogService(store.Products(), logger), logger).RegisterRoutes(router, authMiddleware)
	NewOrderHandler(service.NewOrderService(store.Orders(), nil, logger), logger).RegisterRoutes(router, authMiddleware)

	f := &apiFixture{store: store, gate: gate, router: router}
	f.adminToken = f.seedUser(t, "admin", "admin@portfolio.com", domain.RoleAdmin)
	return f
}

// seedUser stores a user directly and returns a signed token for it
func (f *apiFixture) seedUser(t *testing.T, username, email string, role domain.Role) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(username+"123"), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))

	token, err := f.gate.Issue(user)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// createProduct adds a product through the API as the admin
func (f *apiFixture) createProduct(t *testing.T, name, category string, price string, quantity int) domain.Product {
	t.Helper()
	w := f.do(http.MethodPost, "/api/products", f.adminToken, map[string]interface{}{
		"name":     name,
		"price":    json.Number(price),
		"quantity": quantity,
		"category": category,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}
