// Package main runs the background worker: notification delivery and the orphaned certificate sweep.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warsha-platform/backend/config"
	"github.com/warsha-platform/backend/internal/certificates"
	"github.com/warsha-platform/backend/internal/metrics"
	"github.com/warsha-platform/backend/internal/notificationlogs"
	"github.com/warsha-platform/backend/internal/notify"
	"github.com/warsha-platform/backend/internal/realtime"
	"github.com/warsha-platform/backend/internal/worker"
	"github.com/warsha-platform/backend/pkg/database"
	"github.com/warsha-platform/backend/pkg/queue"
	"github.com/warsha-platform/backend/pkg/redis"
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
	whatsapp := notify.NewWhatsApp(notify.WhatsAppConfig{
		APIURL:      cfg.WhatsApp.APIURL,
		InstanceID:  cfg.WhatsApp.InstanceID,
		AccessToken: cfg.WhatsApp.AccessToken,
		Timeout:     cfg.WhatsApp.Timeout,
	}, logger)
	dispatcher := notify.NewDispatcher(whatsapp, notify.DispatcherConfig{
		CountryCode: cfg.WhatsApp.CountryCode,
		BatchSize:   cfg.WhatsApp.BatchSize,
		BatchDelay:  cfg.WhatsApp.BatchDelay,
	}, logger)
	mailer := notify.NewMailer(notify.MailerConfig{
		Provider:        cfg.Email.Provider,
		FromAddress:     cfg.Email.FromAddress,
		FromName:        cfg.Email.FromName,
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewNotificationProcessor(
		dispatcher,
		mailer,
		notificationlogs.NewRepository(pool),
		realtime.NewProgressBus(rdb.Client, logger),
		jobQueue,
		collector,
		logger,
	)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Server.WorkerMetricsPort,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	scheduler := cron.New()
	if cfg.Certificate.SweepSchedule != "" {
		sweeper := certificates.NewSweeper(s3Client, certificates.NewRepository(pool), cfg.Certificate.SweepGrace, collector, logger)
		_, err := scheduler.AddFunc(cfg.Certificate.SweepSchedule, func() {
			if _, err := sweeper.Run(workerCtx); err != nil {
				logger.Error("certificate sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("invalid CERT_SWEEP_SCHEDULE", zap.Error(err), zap.String("schedule", cfg.Certificate.SweepSchedule))
		}
		scheduler.Start()
		logger.Info("certificate sweep scheduled", zap.String("schedule", cfg.Certificate.SweepSchedule))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-scheduler.Stop().Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
