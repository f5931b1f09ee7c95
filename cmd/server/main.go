package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gabaylaguna/booking-backend/internal/config"
	"github.com/gabaylaguna/booking-backend/internal/database"
	"github.com/gabaylaguna/booking-backend/internal/handlers"
	"github.com/gabaylaguna/booking-backend/internal/middleware"
	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gabaylaguna/booking-backend/pkg/jwt"
	"github.com/gabaylaguna/booking-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Gabay Laguna Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// The audit repository works against sqlx directly
	sqlxDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}

	// Redis backs the PayPal token cache and the task queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	asynqRedis := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(asynqRedis)
	defer asynqClient.Close()

	// Initialize repositories
	guideRepo := database.NewGuideRepository(db)
	availabilityRepo := database.NewAvailabilityRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	gcashAccountRepo := database.NewGCashAccountRepository(db)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB.DB, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.Issuer)
	requestValidator := validator.New()
	auditService := services.NewAuditService(auditRepo, logger)

	tokenCache := services.NewRedisTokenCache(redisClient)
	paypalService := services.NewPayPalService(&cfg.PayPal, &cfg.Payments, tokenCache, logger)
	paymongoService := services.NewPayMongoService(&cfg.PayMongo, &cfg.Payments, logger)
	xenditService := services.NewXenditService(&cfg.Xendit, &cfg.Payments, logger)
	gcashService := services.NewGCashService(gcashAccountRepo, paymentRepo, &cfg.GCash, logger)

	adapters := []services.ProviderAdapter{
		paypalService,
		paymongoService,
		xenditService.InvoiceAdapter(),
		xenditService.VirtualAccountAdapter(),
		gcashService,
	}

	reconcilerService := services.NewReconcilerService(paymentRepo, bookingRepo, auditService, &cfg.Payments, logger)
	expiryService := services.NewExpiryService(asynqClient, reconcilerService, paymentRepo, logger)
	paymentService := services.NewPaymentService(paymentRepo, bookingRepo, adapters, expiryService, auditService, &cfg.Payments, logger)
	slotService := services.NewSlotService(availabilityRepo, bookingRepo, logger)
	bookingService := services.NewBookingService(bookingRepo, guideRepo, slotService, logger)
	verificationService := services.NewVerificationService(paymentRepo, gcashService, reconcilerService, auditService, &cfg.GCash, logger)
	refundService := services.NewRefundService(paymentRepo, bookingRepo, adapters, auditService, logger)
	logger.Info("Services initialized")

	// Background worker for pending payment expiry
	asynqServer := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 5,
		Logger:      logger,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(services.TaskTypePaymentExpire, expiryService.HandleExpireTask)
	go func() {
		if err := asynqServer.Start(mux); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
	}()

	// Initialize handlers
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityRepo, guideRepo, slotService, requestValidator, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, guideRepo, requestValidator, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, bookingService, verificationService, paypalService, reconcilerService, requestValidator, logger)
	webhookHandler := handlers.NewWebhookHandler(paymongoService, xenditService, reconcilerService, auditService, logger)
	adminHandler := handlers.NewAdminHandler(verificationService, refundService, gcashAccountRepo, requestValidator, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	authRequired := middleware.AuthMiddleware(jwtService, logger)

	v1 := router.Group("/api/v1")
	{
		// Gateway callbacks (authenticated by provider tokens, not JWT)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/paymongo", webhookHandler.PayMongo)
			webhooks.POST("/xendit", webhookHandler.Xendit)
		}

		// Public guide schedule lookups
		guides := v1.Group("/guides")
		{
			guides.GET("/:guideId/slots", availabilityHandler.GetSlots)
			guides.GET("/:guideId/availability", availabilityHandler.ListForGuide)
		}

		// Guide schedule management
		availability := v1.Group("/availability")
		availability.Use(authRequired, middleware.RequireRole(middleware.RoleGuide))
		{
			availability.POST("", availabilityHandler.Create)
			availability.PUT("/:id", availabilityHandler.Update)
			availability.DELETE("/:id", availabilityHandler.Delete)
		}

		// Booking lifecycle
		bookings := v1.Group("/bookings")
		bookings.Use(authRequired)
		{
			bookings.POST("", middleware.RequireRole(middleware.RoleTourist), bookingHandler.Create)
			bookings.GET("", middleware.RequireRole(middleware.RoleTourist), bookingHandler.ListMine)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.POST("/:id/cancel", bookingHandler.Cancel)
			bookings.PATCH("/:id/status", middleware.RequireRole(middleware.RoleGuide), bookingHandler.UpdateStatus)

			bookings.POST("/:id/payments", middleware.RequireRole(middleware.RoleTourist), paymentHandler.Initiate)
			bookings.GET("/:id/payments", paymentHandler.ListForBooking)
		}

		guide := v1.Group("/guide")
		guide.Use(authRequired, middleware.RequireRole(middleware.RoleGuide))
		{
			guide.GET("/bookings", bookingHandler.ListForGuide)
		}

		// Payment lookups and proof intake
		payments := v1.Group("/payments")
		payments.Use(authRequired)
		{
			payments.GET("/:id", paymentHandler.Get)
			payments.GET("/:id/status", paymentHandler.Status)
			payments.POST("/:id/proof", paymentHandler.UploadProof)
		}

		// PayPal approval return leg
		paypal := v1.Group("/paypal")
		paypal.Use(authRequired)
		{
			paypal.POST("/orders/:orderId/capture", paymentHandler.CapturePayPal)
		}

		// Admin settlement operations
		admin := v1.Group("/admin")
		admin.Use(authRequired, middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/verifications", adminHandler.VerificationQueue)
			admin.POST("/verifications/:paymentId/approve", adminHandler.ApproveVerification)
			admin.POST("/verifications/:paymentId/reject", adminHandler.RejectVerification)

			admin.GET("/payments/refundable", adminHandler.ListRefundable)
			admin.POST("/payments/:paymentId/refund", adminHandler.Refund)

			admin.GET("/gcash-accounts", adminHandler.ListGCashAccounts)
			admin.POST("/gcash-accounts", adminHandler.CreateGCashAccount)
			admin.POST("/gcash-accounts/:id/activate", adminHandler.ActivateGCashAccount)
			admin.DELETE("/gcash-accounts/:id", adminHandler.DeleteGCashAccount)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	asynqServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
