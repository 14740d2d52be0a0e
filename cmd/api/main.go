package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/leadrouter/config"
	"github.com/jordanlanch/leadrouter/pkg/api/handlers"
	custommw "github.com/jordanlanch/leadrouter/pkg/api/middleware"
	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/bulkimport"
	"github.com/jordanlanch/leadrouter/pkg/cache"
	"github.com/jordanlanch/leadrouter/pkg/jobs"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadrouter/pkg/middleware"
	"github.com/jordanlanch/leadrouter/pkg/notify"
	"github.com/jordanlanch/leadrouter/pkg/quota"
	"github.com/jordanlanch/leadrouter/pkg/store/postgres"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0, // Capture 100% of transactions in development, adjust in production
			AttachStacktrace: true,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
				return event
			},
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	store, err := postgres.Open(cfg.DatabaseURL, appLog)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Assignment engine wiring. Active rules are served through the Redis
	// cache; cursor reads always go straight to the database.
	quotaTracker := quota.NewTracker(store)
	eligibility := assignment.NewEligibilityFilter(store, quotaTracker, appLog)
	escalation := assignment.NewEscalationResolver(store, appLog)
	ruleCache := cache.NewRuleCache(store, redisClient, cfg.RuleCacheTTL, prometheusMetrics, appLog)

	engine := assignment.NewEngine(assignment.Deps{
		Leads:       store,
		Rules:       ruleCache,
		Assignments: store,
		Quotas:      quotaTracker,
		Eligibility: eligibility,
		Escalation:  escalation,
		Strategies: []assignment.Strategy{
			assignment.SpecificUserStrategy{},
			assignment.NewRoundRobinRoleStrategy(store, cfg.CursorRetries).WithMetrics(prometheusMetrics),
			assignment.NewTopPerformerStrategy(store),
			assignment.NewCampaignPoolStrategy(eligibility, store, cfg.CursorRetries).WithMetrics(prometheusMetrics),
		},
		Notifier: notify.NewLogNotifier(appLog),
		Metrics:  prometheusMetrics,
		Logger:   appLog,
	}, assignment.Config{
		EscalateOnUnknownStrategy: cfg.EscalateOnUnknownStrategy,
	})
	log.Printf("✅ Assignment engine initialized (escalate_on_unknown_strategy: %v)", cfg.EscalateOnUnknownStrategy)

	importer := bulkimport.NewImporter(store, engine, prometheusMetrics, appLog)

	// Initialize cron manager for maintenance jobs
	cronManager := jobs.NewCronManager(store, store, cfg.QuotaRetentionDays, appLog)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()
	log.Printf("✅ Cron jobs started successfully")

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))

	e.Use(middleware.Gzip())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))

	// Global rate limiting (default 60 req/min)
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "LeadRouter API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := store.DB().PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		if _, err := redisClient.Redis.Ping(ctx).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Initialize handlers
	leadHandler := handlers.NewLeadHandler(store, store, engine)
	ruleHandler := handlers.NewRuleHandler(store, ruleCache)
	importHandler := handlers.NewImportHandler(importer)

	// Protected routes (require JWT)
	v1 := e.Group("/api/v1")
	v1.Use(custommw.JWTMiddleware(cfg.JWTSecret))
	leadHandler.Register(v1)

	// Admin-only routes: rule management and bulk import
	admin := v1.Group("")
	admin.Use(custommw.RequireAdmin())
	ruleHandler.Register(admin)
	importHandler.Register(admin)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 LeadRouter API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("⏰ Cron jobs: Daily 2AM (quota purge, retention %d days), Daily 6AM (assignment stats)", cfg.QuotaRetentionDays)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Stop cron jobs
	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	globalRateLimiter.Stop()

	// Gracefully shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
