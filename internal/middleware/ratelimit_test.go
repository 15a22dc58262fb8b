package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests beyond the window budget get 429", prop.ForAll(
		func(limit int, excess int) bool {
			handler, _ := newTestLimiter(t, limit)

			allowed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				req := httptest.NewRequest("GET", "/api/products", nil)
				req.RemoteAddr = "192.168.1.100"
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				switch w.Code {
				case http.StatusOK:
					allowed++
				case http.StatusTooManyRequests:
					blocked++
				}
			}

			return allowed == limit && blocked == excess
		},
		gen.IntRange(5, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RemainingBudgetIsReported(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("X-RateLimit-Remaining counts down from the limit", prop.ForAll(
		func(limit int, sent int) bool {
			handler, _ := newTestLimiter(t, limit)

			var w *httptest.ResponseRecorder
			for i := 0; i < sent; i++ {
				req := httptest.NewRequest("GET", "/api/products", nil)
				req.RemoteAddr = "192.168.1.101:40000"
				w = httptest.NewRecorder()
				handler.ServeHTTP(w, req)
			}

			return w.Header().Get("X-RateLimit-Limit") == strconv.Itoa(limit) &&
				w.Header().Get("X-RateLimit-Remaining") == strconv.Itoa(limit-sent)
		},
		gen.IntRange(5, 50),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func newTestLimiter(t *testing.T, limit int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	middleware := RateLimitMiddleware(redisClient, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            time.Minute,
		KeyPrefix:         "test_rate_limit",
	}, zap.NewNop())

	return middleware(okHandler()), mr
}

func TestRateLimit_AuthenticatedUsersHaveSeparateBudgets(t *testing.T) {
	handler, _ := newTestLimiter(t, 1)

	for i := 0; i < 2; i++ {
		identity := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}
		req := httptest.NewRequest("GET", "/api/orders/my", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req = req.WithContext(WithIdentity(req.Context(), identity))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("user %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimit_ExceededResponseCarriesKind(t *testing.T) {
	handler, _ := newTestLimiter(t, 1)

	var w *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/products", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Kind != KindRateLimited {
		t.Errorf("expected kind %s, got %s", KindRateLimited, resp.Error.Kind)
	}
}

func TestRateLimit_RedisOutageFailsOpen(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/products", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 while redis is down, got %d", w.Code)
		}
	}
}
