package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/allegro"
	"github.com/speakASAP/allegro-service/internal/infrastructure/cache"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/speakASAP/allegro-service/internal/infrastructure/persistence"
	"github.com/speakASAP/allegro-service/internal/infrastructure/scheduler"
	"github.com/speakASAP/allegro-service/internal/infrastructure/telemetry"
	"github.com/speakASAP/allegro-service/internal/infrastructure/warehouse"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/handler"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/middleware"
	"github.com/speakASAP/allegro-service/internal/interfaces/http/router"
	"go.uber.org/zap"

	_ "github.com/speakASAP/allegro-service/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Allegro Offer Service API
//	@version		1.0
//	@description	Imports, validates and synchronizes Allegro marketplace offers and their stock.

//	@contact.name	API Support
//	@contact.url	https://github.com/speakASAP/allegro-service

//	@host		localhost:3403
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	SellerID
//	@in							header
//	@name						X-User-ID
//	@description				Seller whose marketplace authorization is used for remote calls

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	providers, err := telemetry.Setup(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	// rebuild the logger so entries also reach the OTLP log exporter
	if core := providers.LogCore(); core != nil {
		if log, err = logger.New(logCfg, core); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Allegro offer service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", providers.Enabled()),
	)

	syncMetrics, err := telemetry.NewSyncMetrics(providers.Meter("allegro.sync"))
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh, cfg.Telemetry.DBLogFullSQL)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.TraceDB(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	offerRepo := persistence.NewGormOfferRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)

	// Marketplace
	tokenStore, closeStore, err := cache.NewTokenStore(cfg.Redis, cfg.Allegro.TokenEncryptionKey, log)
	if err != nil {
		log.Fatal("Failed to initialize token store", zap.Error(err))
	}
	defer func() { _ = closeStore() }()

	httpClient := &http.Client{Timeout: cfg.Allegro.RequestTimeout}
	tokens := allegro.NewTokenManager(
		allegro.NewOAuthExchanger(cfg.Allegro, httpClient),
		tokenStore,
		log,
		allegro.WithSafetyMargin(cfg.Allegro.TokenSafetyMargin),
		allegro.WithMetrics(syncMetrics),
	)
	states := allegro.NewStateSigner(cfg.Allegro.ClientSecret)
	marketplace := allegro.NewClient(cfg.Allegro, log, allegro.WithHTTPClient(httpClient))
	stockService := warehouse.NewClient(cfg.Warehouse, log)

	// Background propagation
	executor := scheduler.NewOfferExecutor(offerRepo, marketplace, tokens, syncMetrics, log)
	propagation, err := scheduler.NewPropagationScheduler(scheduler.ConfigFromSync(cfg.Sync), executor, log)
	if err != nil {
		log.Fatal("Failed to create propagation scheduler", zap.Error(err))
	}
	if err := propagation.Start(context.Background()); err != nil {
		log.Fatal("Failed to start propagation scheduler", zap.Error(err))
	}

	// Application services
	offerService := offerapp.NewOfferService(offerRepo, productRepo, marketplace, tokens, propagation, stockService, syncMetrics, log)
	importService := offerapp.NewImportService(marketplace, offerRepo, tokens, log,
		offerapp.WithPageSize(cfg.Allegro.ImportPageSize),
		offerapp.WithImportMetrics(syncMetrics),
	)
	exportService := offerapp.NewExportService(offerRepo, log)
	stockSyncService := offerapp.NewStockSyncService(offerRepo, productRepo, propagation, stockService, syncMetrics, log)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(providers.Meter("http.server"))
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     providers.Enabled(),
		}),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		httpMetrics,
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	engine.GET("/health", healthHandler(db, propagation))
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	var apiMiddleware []gin.HandlerFunc
	stopCleanup := make(chan struct{})
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiter.StartCleanup(stopCleanup)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMiddleware(apiMiddleware...))
	r.RegisterHandlers(router.Handlers{
		Offers: handler.NewOfferHandler(offerService, exportService),
		Import: handler.NewImportHandler(importService),
		OAuth:  handler.NewOAuthHandler(tokens, states),
		Stock:  handler.NewStockHandler(stockSyncService),
		Sync:   handler.NewSyncHandler(propagation),
		System: handler.NewSystemHandler(cfg.App.Name, version),
	})
	r.Setup()
	for _, route := range r.Routes() {
		log.Debug("Route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.String("description", route.Description),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	close(stopCleanup)
	// running attempts finish; queued writes leave their offers PENDING
	if err := propagation.Stop(ctx); err != nil {
		log.Error("Propagation scheduler did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports database reachability and the propagation queue state
func healthHandler(db *persistence.Database, propagation *scheduler.PropagationScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		stats := propagation.Stats()
		if err := db.Ping(ctx); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
				"sync":     stats,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
			"sync":     stats,
		})
	}
}
