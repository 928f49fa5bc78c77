// Package main runs the workshop platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warsha-platform/backend/config"
	"github.com/warsha-platform/backend/internal/auth"
	"github.com/warsha-platform/backend/internal/certificates"
	"github.com/warsha-platform/backend/internal/metrics"
	"github.com/warsha-platform/backend/internal/middleware"
	"github.com/warsha-platform/backend/internal/notificationlogs"
	"github.com/warsha-platform/backend/internal/realtime"
	"github.com/warsha-platform/backend/internal/registrations"
	"github.com/warsha-platform/backend/internal/workshops"
	"github.com/warsha-platform/backend/pkg/database"
	"github.com/warsha-platform/backend/pkg/queue"
	"github.com/warsha-platform/backend/pkg/redis"
	"github.com/warsha-platform/backend/pkg/response"
	"github.com/warsha-platform/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:             cfg.AWS.Region,
		AccessKeyID:        cfg.AWS.AccessKeyID,
		SecretAccessKey:    cfg.AWS.SecretAccessKey,
		CertificatesBucket: cfg.AWS.CertificatesBucket,
		Endpoint:           cfg.AWS.Endpoint,
		PublicBaseURL:      cfg.AWS.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	collector := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	progressBus := realtime.NewProgressBus(rdb.Client, logger)
	loc := cfg.Certificate.Location()

	// Workshops and registrations
	workshopRepo := workshops.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, jobQueue, registrations.ServiceConfig{
		DateLayout: cfg.Certificate.DateLayout,
		Location:   loc,
	}, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, workshopRepo, logger)

	// Certificates
	renderer, err := certificates.NewRenderer(certificates.RendererConfig{
		BaseURL:         cfg.Server.BaseURL,
		FontRegularPath: cfg.Certificate.FontRegularPath,
		FontBoldPath:    cfg.Certificate.FontBoldPath,
	}, logger)
	if err != nil {
		logger.Fatal("certificate renderer", zap.Error(err))
	}
	certificateRepo := certificates.NewRepository(pool)
	certificateSvc := certificates.NewService(
		registrationRepo,
		workshopRepo,
		certificateRepo,
		renderer,
		certificates.NewStore(s3Client),
		certificates.ServiceConfig{DateLayout: cfg.Certificate.DateLayout, Location: loc},
		collector,
		logger,
	)
	certificateHandler := certificates.NewHandler(
		certificateSvc,
		certificates.NewLookup(certificateRepo, logger),
		certificateRepo,
		jobQueue,
		certificates.HandlerConfig{BaseURL: cfg.Server.BaseURL, DateLayout: cfg.Certificate.DateLayout, Location: loc},
		logger,
	)

	notificationLogsHandler := notificationlogs.NewHandler(notificationlogs.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, collector))
	router.SetHTMLTemplate(certificates.PageTemplate)

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	// Public: verification page, verification API and student registration
	router.GET("/certificate/:code", certificateHandler.VerifyPage)
	router.GET("/api/certificates/verify/:code", certificateHandler.VerifyJSON)
	router.POST("/workshops/:id/register", registrationHandler.Register)

	// Protected: workshop owner or admin
	owner := router.Group("/workshops/:id")
	owner.Use(
		middleware.JWT(jwtService),
		middleware.RequireRole(middleware.RoleOrganizer, middleware.RoleAdmin),
		workshops.RequireWorkshopOwner(workshopRepo),
	)
	{
		owner.POST("/registrations/bulk-approve", registrationHandler.BulkApprove)
		owner.POST("/registrations/bulk-reject", registrationHandler.BulkReject)
		owner.POST("/registrations/:registrationId/approve", registrationHandler.Approve)
		owner.POST("/registrations/:registrationId/reject", registrationHandler.Reject)

		owner.GET("/certificates", certificateHandler.List)
		owner.POST("/certificates", certificateHandler.IssueBulk)
		owner.POST("/certificates/send", certificateHandler.SendBulk)
		owner.POST("/certificates/:registrationId", certificateHandler.IssueOne)
		owner.POST("/certificates/:registrationId/send", certificateHandler.SendOne)

		owner.GET("/notifications", notificationLogsHandler.ListByWorkshop)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/workshops/:id/progress", realtime.ServeProgress(progressBus, jwtService, workshopRepo, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
