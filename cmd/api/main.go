package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"budgetme-notifications/internal/config"
	"budgetme-notifications/internal/handler"
	"budgetme-notifications/internal/logging"
	"budgetme-notifications/internal/middleware"
	"budgetme-notifications/internal/realtime"
	"budgetme-notifications/internal/repository"
	"budgetme-notifications/internal/service"
	"budgetme-notifications/internal/service/auth"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.Component("main")
	if envErr != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	redis, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, caching disabled")
		redis = nil
	} else {
		defer redis.Close()
	}

	minioClient, err := config.NewMinIOClient(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to MinIO, monthly reports will not be archived")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(realtime.DefaultBufferSize)
	listener := realtime.NewListener(cfg.DatabaseURL, cfg.ChangeFeedChannel, hub)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Change feed stopped")
		}
	}()

	repos := repository.NewRepositories(db)
	services, err := service.NewServices(repos, redis, minioClient, hub, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build services")
	}
	handlers := handler.NewHandlers(services, db, cfg.Notifications.MaxListLimit)

	if err := services.Manager.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification manager")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	setupRoutes(app, handlers, services.Auth)

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		services.Manager.Shutdown()
		hub.Close()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

func setupRoutes(app *fiber.App, h *handler.Handlers, authService auth.Service) {
	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", middleware.AuthRequired(authService))

	notifications := api.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/smart", h.Notification.Smart)
	notifications.Get("/unread-count", h.Notification.GetUnreadCount)
	notifications.Get("/counts", h.Notification.GetCounts)
	notifications.Get("/stream", h.Notification.Stream)
	notifications.Get("/preferences", h.Notification.GetPreferences)
	notifications.Put("/preferences", h.Notification.UpdatePreferences)
	notifications.Post("/", h.Notification.Create)
	notifications.Put("/read-all", h.Notification.MarkAllAsRead)
	notifications.Put("/read", h.Notification.MarkMultipleAsRead)
	notifications.Delete("/expired", h.Notification.DeleteExpired)
	notifications.Get("/:id", h.Notification.Get)
	notifications.Get("/:id/deliveries", h.Notification.ListDeliveries)
	notifications.Put("/:id/read", h.Notification.MarkAsRead)
	notifications.Put("/:id/click", h.Notification.MarkAsClicked)
	notifications.Delete("/:id", h.Notification.Delete)

	admin := api.Group("/admin", middleware.RequireRole(auth.RoleService))
	admin.Post("/notifications/tasks/scheduled", h.Admin.RunScheduledTasks)
	admin.Post("/notifications/tasks/cleanup", h.Admin.RunCleanupTasks)
	admin.Post("/goals/:id/deadline-warning/reset", h.Admin.ResetDeadlineWarning)
}
