package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/internal/database"
	"github.com/temcen/shopsense/internal/handlers"
	"github.com/temcen/shopsense/internal/messaging"
	"github.com/temcen/shopsense/internal/middleware"
	"github.com/temcen/shopsense/internal/services"
	"github.com/temcen/shopsense/pkg/models"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	subscriber *messaging.Subscriber
	background sync.WaitGroup
	cancel     context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	return newApp(cfg, SetupLogger(cfg), prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func newApp(cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	svc, err := services.New(cfg, app.logger, db, reg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	app.handlers = handlers.New(app.logger, svc)
	app.setupRouter(gatherer)

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Services() *services.Services {
	return a.services
}

// Start loads the stored model and catalog, then follows model-update events when
// Kafka is configured. Background work stops on Shutdown.
func (a *App) Start(ctx context.Context) error {
	if err := a.services.Bootstrap(ctx, a.config.Training.OnStartup); err != nil {
		return fmt.Errorf("failed to bootstrap model: %w", err)
	}

	if len(a.config.Kafka.Brokers) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.subscriber = messaging.NewSubscriber(&a.config.Kafka, a.logger)

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		if err := a.subscriber.Run(runCtx, a.services.Models.HandleModelEvent); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Model update subscriber stopped")
		}
	}()

	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Background workers did not stop before the shutdown deadline")
	}

	var errs []error
	if a.subscriber != nil {
		errs = append(errs, a.subscriber.Close())
	}
	errs = append(errs, a.services.Close())
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func SetupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter(gatherer prometheus.Gatherer) {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config.Security.CORS))

	// Health check and metrics (no auth required)
	router.GET("/health", a.handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	if a.services.RateLimit != nil {
		api.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
	}
	{
		api.GET("/recommendations/:userId", a.handlers.Recommendation.Get)
		api.GET("/products/:productId/similar", a.handlers.Recommendation.Similar)
		api.GET("/model", a.handlers.Recommendation.Model)
	}

	// Admin routes are only mounted when tokens can be validated
	if a.services.Auth.Enabled() {
		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(a.services.Auth, models.RoleAdmin, a.logger))
		{
			admin.POST("/train", a.handlers.Admin.Train)
			admin.POST("/reload", a.handlers.Admin.Reload)
		}
	} else {
		a.logger.Warn("auth.jwt_secret is empty, admin routes are disabled")
	}

	a.router = router
}
