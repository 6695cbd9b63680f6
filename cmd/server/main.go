package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/redraw/internal/cache"
	"github.com/stwalsh4118/redraw/internal/config"
	"github.com/stwalsh4118/redraw/internal/database"
	"github.com/stwalsh4118/redraw/internal/handlers"
	"github.com/stwalsh4118/redraw/internal/logger"
	"github.com/stwalsh4118/redraw/internal/middleware"
	"github.com/stwalsh4118/redraw/internal/plan"
	"github.com/stwalsh4118/redraw/internal/repository"
	"github.com/stwalsh4118/redraw/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting Redraw API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"store":       cfg.Store.Mode,
	})

	ctx := context.Background()

	// Select the persistence backend
	var (
		db        *database.Database
		planRepo  repository.PlanRepository
		refRepo   repository.ReferenceRepository
		scoreRepo repository.ScoreFunctionRepository
	)
	switch cfg.Store.Mode {
	case config.StorePostgres:
		db, err = database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		store := repository.NewPostgresStore(db)
		planRepo, refRepo, scoreRepo = store, store, store
	default:
		store := repository.NewMemoryStore()
		planRepo, refRepo, scoreRepo = store, store, store
		log.Info("Using in-memory store", nil)
	}

	// Score cache: Redis when configured, in-process otherwise
	var scoreCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("Failed to connect to redis", err, map[string]interface{}{
				"addr": cfg.Redis.Addr,
			})
		}
		defer redisCache.Close()
		scoreCache = redisCache
		log.Info("Redis cache connected", map[string]interface{}{
			"addr": cfg.Redis.Addr,
			"db":   cfg.Redis.DB,
		})
	} else {
		scoreCache = cache.NewMemory()
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize service layers
	planService := plan.NewService(planRepo, refRepo, log, plan.Options{
		BaseGeolevel:      cfg.Plan.BaseGeolevel,
		SimplifyTolerance: cfg.Plan.SimplifyTolerance,
	})
	scoreService := services.NewScoreService(planRepo, refRepo, scoreRepo, scoreCache, log, services.ScoreOptions{
		BaseGeolevel: cfg.Plan.BaseGeolevel,
		CacheTTL:     cfg.Score.CacheTTL,
	})

	// Initialize handlers
	planHandler := handlers.NewPlanHandler(planService)
	scoreHandler := handlers.NewScoreHandler(scoreService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		plans := v1.Group("/plans")
		{
			plans.POST("", planHandler.Create)
			plans.POST("/import", planHandler.ImportIndex)
			plans.POST("/:id/districts", planHandler.AddGeounits)
			plans.POST("/:id/paste", planHandler.Paste)
			plans.POST("/:id/combine", planHandler.Combine)
			plans.POST("/:id/fix-unassigned", planHandler.FixUnassigned)
			plans.GET("/:id/index", planHandler.ExportIndex)
			plans.GET("/:id/scores/:function", scoreHandler.ScorePlan)
			plans.GET("/:id/districts/:district/scores/:function", scoreHandler.ScoreDistrict)
		}
		scores := v1.Group("/scores")
		{
			scores.GET("/functions", scoreHandler.ListFunctions)
		}
		v1.GET("/leaderboard/:body/:function", scoreHandler.Leaderboard)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
