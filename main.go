// Package main provides the main entry point for the simple CRM lead management service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/simple-crm/app/handlers"
	"github.com/amirphl/simple-crm/app/middleware"
	"github.com/amirphl/simple-crm/app/router"
	"github.com/amirphl/simple-crm/app/services"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/amirphl/simple-crm/config"
	"github.com/amirphl/simple-crm/migrations"
	"github.com/amirphl/simple-crm/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	metrics   *http.Server
	stopFuncs []func()
}

// @title Simple CRM API
// @version 1.0
// @description Role-based lead management API for organizers, agents and staff.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter := initializeLogging(cfg.Logging)
	log.Printf("Starting simple-crm %s (commit %s, built %s) in %s mode...",
		cfg.Deployment.Version, cfg.Deployment.CommitHash, cfg.Deployment.BuildTime, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg, logWriter)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		for _, fn := range app.stopFuncs {
			fn()
		}
	}()

	app.router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		log.Printf("Server stopped with error: %v", err)
		return
	}
	log.Println("Server stopped")
}

// run serves the API and metrics listeners until ctx is cancelled or one of them fails
func (a *Application) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		address := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
		return a.router.Start(address)
	})

	if a.metrics != nil {
		g.Go(func() error {
			log.Printf("Metrics server starting on %s", a.metrics.Addr)
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if a.metrics != nil {
			if err := a.metrics.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// initializeLogging points the standard logger at stdout, a rotating file, or both
func initializeLogging(cfg config.LoggingConfig) io.Writer {
	var writer io.Writer = os.Stdout

	if cfg.Output == "file" || cfg.Output == "both" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "file" {
			writer = rotating
		} else {
			writer = io.MultiWriter(os.Stdout, rotating)
		}
	}

	log.SetOutput(writer)
	log.SetFlags(log.LstdFlags | log.LUTC)
	return writer
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info", "warn":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logging config.LoggingConfig, out io.Writer) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(log.New(out, "", log.LstdFlags|log.LUTC), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormLogLevel(logging.Level),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
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

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity. It returns nil when caching is disabled.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
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

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
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
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks the email provider used for agent assignment mails
func initializeNotificationService(cfg config.EmailConfig) services.NotificationService {
	var emailProvider services.EmailProvider

	switch cfg.Provider {
	case "smtp":
		emailProvider = services.NewSMTPEmailProvider(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromEmail, cfg.FromName)
	default:
		emailProvider = services.NewMockEmailProvider()
	}

	return services.NewNotificationService(emailProvider)
}

// initializeEventPublisher connects to RabbitMQ when messaging is enabled and logs events otherwise
func initializeEventPublisher(cfg config.MessagingConfig) (services.EventPublisher, error) {
	if !cfg.Enabled {
		return services.NewLogEventPublisher(), nil
	}

	publisher, err := services.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	log.Printf("Publishing lead events to exchange %s", cfg.Exchange)
	return publisher, nil
}

// initializeMetricsServer exposes the Prometheus registry on its own listener
func initializeMetricsServer(cfg config.MetricsConfig) *http.Server {
	if !cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	var stopFuncs []func()
	fail := func(err error) (*Application, error) {
		for _, fn := range stopFuncs {
			fn()
		}
		return nil, err
	}

	db, err := initializeDatabase(cfg.Database, cfg.Logging, logWriter)
	if err != nil {
		return fail(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })
	}

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrations.Apply(ctx, db)
		cancel()
		if err != nil {
			return fail(fmt.Errorf("failed to apply migrations: %w", err))
		}
		log.Println("Database migrations applied")
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return fail(err)
	}

	var (
		revocations services.RevocationStore = services.NewMemoryRevocationStore()
		challenges  services.ChallengeStore  = services.NewMemoryChallengeStore()
	)
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		revocations = services.NewRedisRevocationStore(rc, cfg.Cache.RedisPrefix)
		challenges = services.NewRedisChallengeStore(rc, cfg.Cache.RedisPrefix)
	} else {
		log.Println("Redis disabled; token revocations and captcha challenges are kept in memory")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	organizerRepo := repository.NewOrganizerProfileRepository(db)
	agentRepo := repository.NewAgentProfileRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	notificationService := initializeNotificationService(cfg.Email)

	publisher, err := initializeEventPublisher(cfg.Messaging)
	if err != nil {
		return fail(err)
	}
	stopFuncs = append(stopFuncs, func() { _ = publisher.Close() })

	// nil disables the login captcha
	var captchaSvc services.CaptchaService
	if cfg.Captcha.Enabled {
		captchaSvc, err = services.NewCaptchaServiceRotate(challenges, cfg.Captcha.TTL, cfg.Captcha.Padding, cfg.Captcha.ImageSize)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize captcha service: %w", err))
		}
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocations,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token service: %w", err))
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	resolver := businessflow.NewCallerResolver(accountRepo, organizerRepo, agentRepo)
	synchronizer := businessflow.NewProfileSynchronizer(organizerRepo, agentRepo)

	accountFlow := businessflow.NewAccountFlow(
		accountRepo,
		organizerRepo,
		agentRepo,
		auditRepo,
		resolver,
		synchronizer,
		publisher,
		rc,
		cfg.Cache.RedisPrefix,
		db,
	)

	loginFlow := businessflow.NewLoginFlow(
		accountRepo,
		auditRepo,
		tokenService,
		captchaSvc,
	)

	leadFlow := businessflow.NewLeadFlow(
		leadRepo,
		categoryRepo,
		organizerRepo,
		agentRepo,
		auditRepo,
		resolver,
		notificationService,
		publisher,
		db,
	)

	categoryFlow := businessflow.NewCategoryFlow(
		categoryRepo,
		auditRepo,
		resolver,
		db,
	)

	// Initialize handlers
	handlers.SetRequestTimeout(cfg.Server.RequestTimeout)
	authHandler := handlers.NewAuthHandler(accountFlow, loginFlow)
	leadHandler := handlers.NewLeadHandler(leadFlow)
	categoryHandler := handlers.NewCategoryHandler(categoryFlow)
	adminAccountHandler := handlers.NewAdminAccountHandler(accountFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(
		cfg,
		logWriter,
		authHandler,
		leadHandler,
		categoryHandler,
		adminAccountHandler,
		authMiddleware,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		metrics:   initializeMetricsServer(cfg.Metrics),
		stopFuncs: stopFuncs,
	}, nil
}
