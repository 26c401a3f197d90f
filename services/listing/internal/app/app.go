package internal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"troc-marketplace/pkg/config"
	"troc-marketplace/pkg/jwt"
	"troc-marketplace/pkg/logger"
	"troc-marketplace/pkg/middleware"
	"troc-marketplace/pkg/queue"
	"troc-marketplace/pkg/s3"
	listingHTTP "troc-marketplace/services/listing/internal/controller/http"
	"troc-marketplace/services/listing/internal/form"
	"troc-marketplace/services/listing/internal/repo/persistent"
	"troc-marketplace/services/listing/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "troc-marketplace/services/listing/docs" // Swagger docs
)

const previewsPath = "/api/v1/previews"

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, s3Client *s3.Client, queueClient *queue.Client, redisClient *redis.Client) {
	jwtService := jwt.NewService(cfg.JWTSecret)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := s3Client.EnsureBucket(ctx, cfg.S3BucketName); err != nil {
		log.Warn("Could not ensure bucket %s: %v", cfg.S3BucketName, err)
	}
	cancel()

	// Initialize repositories
	listingRepo := persistent.NewListingRepository(db, cfg.ListingCollection)

	// Initialize adapters behind the form ports
	var events usecase.EventPublisher
	if queueClient != nil {
		events = queueClient
	}
	records := usecase.NewListingRecordStore(listingRepo, redisClient, events, log)
	previews := usecase.NewRedisPreviewStore(redisClient, previewsPath, cfg.PreviewTTL)
	publisher := usecase.NewRedisNotificationPublisher(redisClient)

	releasePolicy := form.RetainPreviews
	if cfg.PreviewRelease == config.PreviewRelease {
		releasePolicy = form.ReleasePreviews
	}

	// Initialize use cases
	draftUseCase := usecase.NewDraftUseCase(s3Client, records, previews, publisher, listingRepo, usecase.DraftConfig{
		Form: form.Options{
			MaxPhotos:      cfg.MaxPhotos,
			Bucket:         cfg.S3BucketName,
			Collection:     cfg.ListingCollection,
			ListingsRoute:  cfg.ListingsRoute,
			PreviewRelease: releasePolicy,
			Logger:         log,
		},
		DraftTTL: cfg.DraftTTL,
	}, log)

	// Initialize HTTP handlers
	draftHandler := listingHTTP.NewDraftHandler(draftUseCase, redisClient, log)

	// Setup router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.OptionalAuthMiddleware(jwtService))
	api.Use(middleware.RateLimitMiddleware(redisClient, 100, time.Minute, log))

	{
		api.POST("/drafts", draftHandler.CreateDraft)
		api.GET("/drafts/:id", draftHandler.GetDraft)
		api.PATCH("/drafts/:id", draftHandler.UpdateDraft)
		api.DELETE("/drafts/:id", draftHandler.DiscardDraft)
		api.POST("/drafts/:id/photos", draftHandler.UploadPhotos)
		api.DELETE("/drafts/:id/photos/:index", draftHandler.RemovePhoto)
		api.POST("/drafts/:id/submit", draftHandler.SubmitDraft)
		api.GET("/drafts/:id/events", draftHandler.DraftEvents)
		api.GET("/previews/:handle", draftHandler.GetPreview)
		api.GET("/listings/:id", draftHandler.GetListing)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/listings/mine", draftHandler.ListMyListings)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Listing service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down listing service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		log.Error("Error closing Redis: %v", err)
	}

	// Close RabbitMQ connection
	if queueClient != nil {
		queueClient.Close()
	}

	log.Info("Listing service exited")
}
