package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"parts-depot/internal/cache"
	"parts-depot/internal/config"
	"parts-depot/internal/database"
	"parts-depot/internal/metrics"
	custommiddleware "parts-depot/internal/middleware"
	"parts-depot/internal/repository"
	"parts-depot/internal/service"
	"parts-depot/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router.
// redisClient may be nil, which disables rate limiting and pricing snapshots.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	recorder := metrics.NewRecorder()
	router.Use(custommiddleware.MetricsMiddleware(recorder))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit",
		}, logger))
	} else {
		logger.Warn("Redis not configured, rate limiting and pricing snapshots disabled")
	}

	router.Get("/health", healthHandler(db, redisClient))
	router.Handle("/metrics", metrics.Handler())

	sqlDB := db.DB()
	productRepo := repository.NewProductRepository(sqlDB)
	inventoryRepo := repository.NewInventoryRepository(sqlDB)
	ruleRepo := repository.NewPriceRuleRepository(sqlDB)
	gradeRepo := repository.NewCustomerGradeRepository(sqlDB)

	var snapshots cache.SnapshotStore
	if redisClient != nil {
		snapshots = cache.NewSnapshotStore(redisClient, cfg.Pricing.SnapshotTTL)
	}

	pricingService := service.NewPricingService(productRepo, ruleRepo, gradeRepo, snapshots, recorder, cfg.Pricing, logger)
	productService := service.NewProductService(productRepo, inventoryRepo)
	ruleService := service.NewPriceRuleService(ruleRepo, cfg.Pricing.DefaultRulePriority)
	gradeService := service.NewCustomerGradeService(gradeRepo)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	transport.NewCatalogHandler(pricingService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewPriceRuleHandler(ruleService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewProductHandler(productService, pricingService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewCustomerGradeHandler(gradeService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health(r.Context())

		redisStatus := "disabled"
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			redisStatus = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
			}
		}

		// redis only backs snapshots and rate limits, so it never fails the check
		status := http.StatusOK
		overall := "ok"
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   overall,
			"database": dbHealth,
			"redis":    redisStatus,
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
