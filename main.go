package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/handlers"
	"github.com/bkarakus/wa-dispatch-service/internal/repository"
	"github.com/bkarakus/wa-dispatch-service/internal/scheduler"
	"github.com/bkarakus/wa-dispatch-service/internal/service"
	"github.com/bkarakus/wa-dispatch-service/pkg/database"
	"github.com/bkarakus/wa-dispatch-service/pkg/events"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
	"github.com/bkarakus/wa-dispatch-service/pkg/redis"
	"github.com/bkarakus/wa-dispatch-service/pkg/validator"
	"github.com/bkarakus/wa-dispatch-service/pkg/whatsapp"
	"github.com/bkarakus/wa-dispatch-service/routes"
)

func main() {
	logger.Init()

	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.Provider.AccessToken == "" {
		logger.Fatalf("WA_ACCESS_TOKEN is required but not set")
	}
	if cfg.Provider.PhoneNumberID == "" {
		logger.Fatalf("WA_PHONE_NUMBER_ID is required but not set")
	}
	if cfg.Auth.OpsAPIKey == "" {
		logger.Fatalf("OPS_API_KEY is required but not set")
	}
	if cfg.Auth.CRMAPIKey == "" {
		logger.Fatalf("CRM_API_KEY is required but not set")
	}

	logger.Infof("Starting WhatsApp campaign dispatch service...")

	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	var redisClient *redis.Client
	redisClient, err = redis.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Valkey not available, media cache fast path disabled: %v", err)
		redisClient = nil
	}

	// Realtime sink: AMQP when configured, log-only otherwise.
	var sink events.Sink = events.LogSink{}
	var amqpSink *events.AMQPSink
	if cfg.Events.AMQPURL != "" {
		amqpSink, err = events.NewAMQPSink(cfg.Events)
		if err != nil {
			logger.Warnf("AMQP not available, realtime events fall back to log: %v", err)
		} else {
			sink = amqpSink
		}
	}

	providerClient := whatsapp.NewClient(cfg.Provider)

	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	chatRepo := repository.NewChatRepository(db)
	dealRepo := repository.NewDealRepository(db)

	crmService := service.NewCRMService(dealRepo, campaignRepo, cfg.Dispatch.ReplyWindow)

	var cache service.MediaCache
	if redisClient != nil {
		cache = redisClient
	}

	dispatchService := service.NewDispatchService(
		campaignRepo,
		recipientRepo,
		templateRepo,
		chatRepo,
		providerClient,
		cache,
		crmService,
		sink,
		cfg.Dispatch,
	)

	campaignService := service.NewCampaignService(campaignRepo, recipientRepo, templateRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Re-derive template blueprints before the first cycle.
	if err := campaignService.SyncTemplateBlueprints(ctx); err != nil {
		logger.Warnf("Failed to sync template blueprints: %v", err)
	}

	sched := scheduler.NewScheduler(dispatchService, cfg.Dispatch.CycleInterval, cfg.Dispatch.CycleTimeout)

	healthHandler := handlers.NewHealthHandler(db, redisClient)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	dispatcherHandler := handlers.NewDispatcherHandler(sched, ctx)
	crmHandler := handlers.NewCRMHandler(crmService)

	if os.Getenv("AUTO_START_DISPATCHER") != "false" {
		logger.Infof("Auto-starting dispatcher...")
		if err := sched.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start dispatcher: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	routes.RegisterRoutes(e, healthHandler, campaignHandler, dispatcherHandler, crmHandler, cfg)

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Ops server starting on http://localhost%s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	cancel()

	// Stop dispatcher first so no cycle is mid-flight during teardown.
	if sched.IsRunning() {
		logger.Infof("Stopping dispatcher...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sched.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping dispatcher: %v", err)
			} else {
				logger.Infof("Dispatcher stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Dispatcher stop timeout, forcing shutdown")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Errorf("Error closing Valkey client: %v", err)
		}
	}

	if amqpSink != nil && sink == events.Sink(amqpSink) {
		if err := amqpSink.Close(); err != nil {
			logger.Errorf("Error closing AMQP connection: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
