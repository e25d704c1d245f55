package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investtracker/internal/config"
	"investtracker/internal/database"
	"investtracker/internal/engine"
	"investtracker/internal/handlers"
	"investtracker/internal/logger"
	"investtracker/internal/middleware"
	"investtracker/internal/quotes"
	"investtracker/internal/scheduler"
	"investtracker/internal/services"
	"investtracker/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "investtracker/internal/docs" // Import swagger docs
)

const shutdownTimeout = 15 * time.Second

// @title           InvestTracker API
// @version         1.0
// @description     Portfolio valuation and price alerts for stock, CEDEAR and corporate bond holdings.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Market data
	source := quotes.NewRouter(quotes.NewYahooProvider())

	// Services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	assetService := services.NewAssetService(db, appConfig.DefaultCurrency)
	alertService := services.NewAlertService(db)
	historyService := services.NewAlertHistoryService(db)
	notificationService := services.NewNotificationService(db)
	priceService := services.NewPriceService(db, source)
	portfolioService := services.NewPortfolioService(db, source, services.PortfolioOptions{
		QuoteConcurrency: appConfig.QuoteConcurrency,
		QuoteTimeout:     appConfig.QuoteTimeout,
		QuoteMaxAge:      appConfig.QuoteMaxAge,
	})

	// Evaluation engine
	runner := engine.NewRunner(engine.NewGormStore(db, notificationService), source, engine.Config{
		CycleTimeout:      appConfig.CycleTimeout,
		QuoteTimeout:      appConfig.QuoteTimeout,
		QuoteConcurrency:  appConfig.QuoteConcurrency,
		QuoteMaxAge:       appConfig.QuoteMaxAge,
		CommitMaxAttempts: appConfig.CommitMaxAttempts,
		CommitBackoff:     appConfig.CommitBackoff,
	})

	if appConfig.SchedulerEnabled {
		sched := scheduler.New()
		if err := sched.AddJob(appConfig.EvaluationSchedule, scheduler.NewEvaluationJob(runner)); err != nil {
			return fmt.Errorf("failed to schedule evaluation: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info("Scheduler disabled, evaluation runs only through the pipeline endpoint")
	}

	// Handlers
	assetHandler := handlers.NewAssetHandler(assetService, auditService)
	alertHandler := handlers.NewAlertHandler(alertService, auditService)
	historyHandler := handlers.NewHistoryHandler(historyService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	priceHandler := handlers.NewPriceHandler(priceService)
	pipelineHandler := handlers.NewPipelineHandler(runner)

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/evaluate", pipelineHandler.Evaluate)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(appConfig.JWTSecret))

	assets := protected.Group("/assets")
	assets.POST("", assetHandler.CreateAsset)
	assets.GET("", assetHandler.GetUserAssets)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.PUT("/:id", assetHandler.UpdateAsset)
	assets.DELETE("/:id", assetHandler.DeleteAsset)

	alerts := protected.Group("/alerts")
	alerts.POST("", alertHandler.CreateAlert)
	alerts.GET("", alertHandler.GetUserAlerts)
	alerts.GET("/history", historyHandler.GetHistory)
	alerts.GET("/asset/:asset_id", alertHandler.GetAssetAlerts)
	alerts.GET("/:id", alertHandler.GetAlert)
	alerts.PUT("/:id", alertHandler.UpdateAlert)
	alerts.PATCH("/:id/toggle", alertHandler.ToggleAlert)
	alerts.DELETE("/:id", alertHandler.DeleteAlert)

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.GET("/unread-count", notificationHandler.GetUnreadCount)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.DeleteNotification)
	notifications.POST("/test", notificationHandler.CreateTestNotification)

	portfolio := protected.Group("/portfolio")
	portfolio.GET("/summary", portfolioHandler.GetSummary)
	portfolio.GET("/assets", portfolioHandler.GetAssets)

	prices := protected.Group("/prices")
	prices.GET("/:ticker", priceHandler.GetRecordedPrices)
	prices.GET("/:ticker/current", priceHandler.GetCurrentPrice)
	prices.GET("/:ticker/history", priceHandler.GetHistory)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting InvestTracker server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
