package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	applivestock "github.com/agristock/backend/internal/application/livestock"
	"github.com/agristock/backend/internal/infrastructure/cache"
	"github.com/agristock/backend/internal/infrastructure/config"
	"github.com/agristock/backend/internal/infrastructure/logger"
	"github.com/agristock/backend/internal/infrastructure/persistence"
	"github.com/agristock/backend/internal/interfaces/http/handler"
	"github.com/agristock/backend/internal/interfaces/http/middleware"
	"github.com/agristock/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database with GORM logging routed through zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLogger := logger.NewGormLogger(log, gormLogLevel)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Repositories and transaction scope
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	txnRepo := persistence.NewGormTransactionRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	// Commit token replay protection (Redis when enabled, in-memory otherwise)
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Failed to close idempotency store", zap.Error(err))
		}
	}()

	// Application services
	ledgerService := applivestock.NewLedgerService(
		batchRepo, txnRepo, scope, idempotencyStore, log,
		applivestock.WithIdempotencyTTL(cfg.Ledger.IdempotencyTTL),
	)
	editService := applivestock.NewEditService(
		ledgerService, txnRepo, batchRepo, scope, log,
		applivestock.WithSessionTTL(cfg.Ledger.EditSessionTTL),
	)
	defer func() {
		if err := editService.Close(); err != nil {
			log.Error("Failed to close edit service", zap.Error(err))
		}
	}()
	statsService := applivestock.NewStatsService(txnRepo, batchRepo, log)

	livestockHandler := handler.NewLivestockHandler(ledgerService, editService, statsService)

	// Gin engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(int64(cfg.HTTP.MaxHeaderBytes)*4),
	)

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(livestockHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		overall := "ok"
		dbStatus := "up"
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Error("Database health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			overall = "degraded"
			dbStatus = "down"
		}
		c.JSON(status, gin.H{
			"status":   overall,
			"time":     time.Now().UTC().Format(time.RFC3339),
			"database": dbStatus,
		})
	}
}
