package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/metrics"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Repositories is the storage a server runs against
type Repositories struct {
	Users    repository.UserRepository
	Products repository.ProductRepository
	Orders   repository.OrderRepository
}

// Dependencies are the external resources a server owns and closes.
// Repositories default to RepositoriesFor(DB); nil Redis disables rate limiting.
type Dependencies struct {
	DB           database.Service
	Repositories *Repositories
	Redis        *redis.Client
	Publisher    events.Publisher
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, deps),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	return server
}

// RepositoriesFor returns postgres repositories over db, or a fresh
// in-memory store when db is nil
func RepositoriesFor(db database.Service) Repositories {
	if db == nil {
		store := repository.NewMemoryStore()
		return Repositories{
			Users:    store.Users(),
			Products: store.Products(),
			Orders:   store.Orders(),
		}
	}
	return Repositories{
		Users:    repository.NewUserRepository(db.DB()),
		Products: repository.NewProductRepository(db.DB()),
		Orders:   repository.NewOrderRepository(db.DB()),
	}
}

// NewRouter wires middleware, services and handlers into a chi router
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(metrics.InstrumentHandler)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.Server.IsProduction()))

	router.Get("/health", healthHandler(deps.DB))
	router.Handle("/metrics", metrics.Handler())

	repos := RepositoriesFor(deps.DB)
	if deps.Repositories != nil {
		repos = *deps.Repositories
	}
	gate := auth.NewGate(cfg.JWT.Secret, cfg.JWT.AccessTTL())

	userService := service.NewUserService(repos.Users, gate, logger)
	catalogService := service.NewCatalogService(repos.Products, logger)
	orderService := service.NewOrderService(repos.Orders, deps.Publisher, logger)

	authMiddleware := custommiddleware.AuthMiddleware(gate, logger)

	router.Group(func(api chi.Router) {
		// Credentials are checked before the limiter, so a bad token is a 401
		// and a good one is charged to its user rather than its IP
		api.Use(custommiddleware.OptionalAuthMiddleware(gate, logger))
		if deps.Redis != nil {
			api.Use(custommiddleware.RateLimitMiddleware(deps.Redis, rateLimitConfig(cfg), logger))
		}

		transport.NewUserHandler(userService, logger).RegisterRoutes(api, authMiddleware)
		transport.NewProductHandler(catalogService, logger).RegisterRoutes(api, authMiddleware)
		transport.NewOrderHandler(orderService, logger).RegisterRoutes(api, authMiddleware)
	})

	return router
}

func rateLimitConfig(cfg *config.Config) custommiddleware.RateLimitConfig {
	return custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window(),
		KeyPrefix:         "rate_limit",
	}
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{
				"status":  "up",
				"storage": config.StorageMemory,
			})
			return
		}

		health := db.Health()
		health["storage"] = config.StoragePostgres
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	}
}

// NewRedisClient connects to redis for rate limiting. A failed ping is
// logged; the limiter lets traffic through while redis is unreachable.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, rate limiting degraded", zap.String("addr", cfg.Addr()), zap.Error(err))
	}
	return client
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.deps.Publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
