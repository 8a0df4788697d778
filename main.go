// Package main provides the main entry point for the dialflow follow-up service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/dialflow/app/handlers"
	"github.com/amirphl/dialflow/app/router"
	"github.com/amirphl/dialflow/app/scheduler"
	"github.com/amirphl/dialflow/app/services"
	businessflow "github.com/amirphl/dialflow/business_flow"
	"github.com/amirphl/dialflow/config"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	reporter  services.ErrorReporter
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"environment": cfg.Deployment.Environment,
		"version":     cfg.Deployment.Version,
	}).Info("starting dialflow")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	<-sigChan
	logger.Info("shutting down gracefully")

	// Background workers stop before the server so no sweep outlives the pool
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("error during shutdown")
	}

	app.reporter.Flush(2 * time.Second)
	logger.Info("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("redis_db", cfg.RedisDB).Info("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *logrus.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.WithError(err).Warn("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeErrorReporter configures sentry when a DSN is set
func initializeErrorReporter(cfg config.SentryConfig, deployment config.DeploymentConfig) (services.ErrorReporter, error) {
	if cfg.DSN == "" {
		return services.NewErrorReporter(""), nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     deployment.Version,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return services.NewErrorReporter(cfg.DSN), nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *logrus.Logger) (*Application, error) {
	var stopFuncs []func()

	reporter, err := initializeErrorReporter(cfg.Sentry, cfg.Deployment)
	if err != nil {
		return nil, err
	}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	var reservations services.ReservationStore
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, logger))
		if cfg.Transfer.ReservationEnabled {
			reservations = services.NewRedisReservationStore(rc, cfg.Cache.RedisPrefix, cfg.Transfer.ReservationTTL)
		}
	}

	// Initialize repositories
	tx := repository.NewTransactor(db)
	campaignRepo := repository.NewCampaignRepository(db)
	groupRepo := repository.NewFollowupGroupRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	progressRepo := repository.NewFollowupProgressRepository(db)
	callLogRepo := repository.NewCallLogRepository(db)
	promptRepo := repository.NewIVRPromptRepository(db)
	messageRepo := repository.NewIVRPromptMessageRepository(db)
	transferNumberRepo := repository.NewTransferNumberRepository(db)
	phoneNumberRepo := repository.NewPhoneNumberRepository(db)
	integrationRepo := repository.NewIntegrationRepository(db)
	pingRepo := repository.NewPingLogRepository(db)
	contactRepo := repository.NewSMSContactRepository(db)
	blockRepo := repository.NewBlockListRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize services
	var sealer services.CredentialSealer
	if key := cfg.Security.IntegrationSecretKey; key != "" {
		s, err := services.NewCredentialSealer(key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize credential sealer: %w", err)
		}
		sealer = s
	}
	partners := services.NewPartnerFactory(&cfg.Integrations, sealer)
	telephony := services.NewTelephonyClient(&cfg.Twilio)
	urls := businessflow.NewCallbackURLs(&cfg.Twilio)

	// Initialize flows
	calculator := businessflow.NewScheduleCalculator(cfg.Scheduler.CampaignTimeZone)
	planner := businessflow.NewSequencePlanner(tx, leadRepo, groupRepo, followUpRepo, progressRepo, calculator, logger)
	progress := businessflow.NewProgressFlow(leadRepo, progressRepo, calculator, logger)
	resolver := businessflow.NewTransferResolver(transferNumberRepo, pingRepo, partners, reservations, cfg.Transfer.ProbeTimeout, logger)

	ivrFlow := businessflow.NewIVRFlow(promptRepo, messageRepo, callLogRepo, leadRepo, followUpRepo, resolver, urls, logger)

	webhookFlow := businessflow.NewTelephonyWebhookFlow(
		cfg.Twilio.AccountSID,
		callLogRepo,
		phoneNumberRepo,
		blockRepo,
		leadRepo,
		groupRepo,
		progressRepo,
		promptRepo,
		contactRepo,
		userRepo,
		planner,
		progress,
		telephony,
		reporter,
		urls,
		logger,
	)

	sequenceFlow := businessflow.NewSequenceFlow(tx, campaignRepo, progressRepo, planner, calculator, logger)

	// The dispatcher keeps its own log file
	dispatchLogger := utils.NewFileLogger(cfg.Logging, cfg.Scheduler.LogFile)
	dispatchFlow := businessflow.NewDispatchFlow(
		progressRepo,
		phoneNumberRepo,
		callLogRepo,
		contactRepo,
		promptRepo,
		integrationRepo,
		progress,
		telephony,
		partners,
		reporter,
		urls,
		dispatchLogger,
	)

	sched, err := scheduler.NewFollowupScheduler(dispatchFlow, cfg.Scheduler, dispatchLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	if cfg.Scheduler.DispatcherEnabled {
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	// Initialize handlers
	telephonyHandler := handlers.NewTelephonyHandler(ivrFlow, webhookFlow, sched, logger)
	sequenceHandler := handlers.NewSequenceHandler(sequenceFlow, logger)

	appRouter := router.NewFiberRouter(cfg, telephonyHandler, sequenceHandler, logger)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		reporter:  reporter,
		stopFuncs: stopFuncs,
	}, nil
}
