// Package main provides the main entry point for the estate settlement service
//
// @title Estate Settlement API
// @version 1.0
// @description Commission ledger, agent claims and monthly payout settlement for the real-estate platform
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/estate-settlement/app/handlers"
	"github.com/amirphl/estate-settlement/app/middleware"
	"github.com/amirphl/estate-settlement/app/router"
	"github.com/amirphl/estate-settlement/app/scheduler"
	"github.com/amirphl/estate-settlement/app/services"
	businessflow "github.com/amirphl/estate-settlement/business_flow"
	"github.com/amirphl/estate-settlement/config"
	"github.com/amirphl/estate-settlement/logging"
	"github.com/amirphl/estate-settlement/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *logrus.Logger
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.WithField("version", cfg.Deployment.Version).Info("Starting estate settlement service...")

	// Initialize application
	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutting down gracefully...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}

	// Stop background workers and close clients
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	logger.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		logger.Warn("Redis cache disabled; review locks and aggregate caching are off")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// initializePublisher picks the AMQP publisher when the broker is enabled
func initializePublisher(cfg config.BrokerConfig, logger *logrus.Logger) (services.EventPublisher, error) {
	if !cfg.Enabled {
		logger.Info("Event broker disabled; domain events are logged only")
		return services.NewLogPublisher(logger), nil
	}
	publisher, err := services.NewAMQPPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event broker: %w", err)
	}
	logger.WithField("exchange", cfg.Exchange).Info("Event broker connected")
	return publisher, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *logrus.Logger) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	loc, err := time.LoadLocation(cfg.Settlement.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement timezone %q: %w", cfg.Settlement.Timezone, err)
	}

	// Initialize repositories
	commissionRepo := repository.NewCommissionRepository(db)
	feeRepo := repository.NewAgentCommissionFeeRepository(db)
	settlementRepo := repository.NewSaleBonusRecordRepository(db)
	pendingRepo := repository.NewPendingCompletionRepository(db)
	txManager := repository.NewTxManager(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	orderCodes, err := services.NewOrderCodeGenerator(cfg.IDGen.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize order code generator: %w", err)
	}

	gateway := services.NewPayOSClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.ClientID,
		cfg.Gateway.APIKey,
		cfg.Gateway.ChecksumKey,
		cfg.Gateway.ReturnURL,
		cfg.Gateway.CancelURL,
		cfg.Gateway.Timeout,
	)
	agents := services.NewAgentDirectoryClient(
		cfg.Collaborators.AuthServiceURL,
		cfg.Collaborators.InternalAPIKey,
		cfg.Collaborators.Timeout,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Collaborators.AgentCacheTTL,
		logger,
	)
	property := services.NewPropertyClient(cfg.Collaborators.PropertyServiceURL, cfg.Collaborators.InternalAPIKey, cfg.Collaborators.Timeout)
	mailer := services.NewMailClient(cfg.Collaborators.MailServiceURL, cfg.Collaborators.InternalAPIKey, cfg.Collaborators.Timeout)

	publisher, err := initializePublisher(cfg.Broker, logger)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() { _ = publisher.Close() })

	logger.WithFields(logrus.Fields{
		"issuer":   cfg.JWT.Issuer,
		"audience": cfg.JWT.Audience,
		"gateway":  cfg.Gateway.BaseURL,
	}).Info("Services initialized")

	// Initialize flows
	ledger := businessflow.NewCommissionLedger(
		commissionRepo,
		feeRepo,
		txManager,
		gateway,
		orderCodes,
		agents,
		logger,
	)

	aggregator := businessflow.NewSettlementAggregator(
		feeRepo,
		settlementRepo,
		agents,
		rc,
		cfg.Cache,
		loc,
		logger,
	)

	transactionFlow := businessflow.NewTransactionFlow(
		ledger,
		commissionRepo,
		feeRepo,
		pendingRepo,
		txManager,
		gateway,
		property,
		agents,
		publisher,
		rc,
		cfg.Cache,
		cfg.Settlement,
		logger,
	)

	settlementFlow := businessflow.NewSettlementFlow(
		aggregator,
		agents,
		mailer,
		publisher,
		loc,
		logger,
	)

	// Initialize handlers
	commissionHandler := handlers.NewCommissionHandler(transactionFlow, logger)
	saleHandler := handlers.NewSaleHandler(settlementFlow, logger)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		commissionHandler,
		saleHandler,
		authMiddleware,
		logger,
	)

	// Retry property completions left pending by a failed confirm
	relay := scheduler.NewCompletionRelay(transactionFlow, cfg.Settlement.RelayInterval, logger)
	stopFuncs = append(stopFuncs, relay.Start(context.Background()))

	application := &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
	}

	return application, nil
}
