package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/api/handlers"
	"github.com/nhien36hk/StudentActivityTracker/internal/cache/redis"
	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/middleware/ratelimit"
	"github.com/nhien36hk/StudentActivityTracker/internal/middleware/security"
	"github.com/nhien36hk/StudentActivityTracker/internal/middleware/validation"
	"github.com/nhien36hk/StudentActivityTracker/internal/search"
	"github.com/nhien36hk/StudentActivityTracker/internal/snapshot"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/sqlite"
	"github.com/nhien36hk/StudentActivityTracker/pkg/config"
	appLogger "github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting student activity search API")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	engine := search.NewEngine(cfg.Search.MaxResults)
	if snapshot.Exists(cfg.Snapshot.Dir) {
		students, err := snapshot.LoadStudents(cfg.Snapshot.Dir)
		if err != nil {
			appLogger.Fatal("Failed to load snapshot", zap.Error(err))
		}
		engine.Rebuild(students)
	} else {
		appLogger.Warn("No snapshot found, search will be unavailable until the pipeline runs",
			zap.String("dir", cfg.Snapshot.Dir),
		)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.MaxRequestsPerMinute,
		Logger:               appLogger.Log,
	})
	defer limiter.Stop()

	searchHandler := handlers.NewSearchHandler(engine, sqliteClient, cacheClient)
	statsHandler := handlers.NewStatsHandler(engine, sqliteClient)
	unresolvedHandler := handlers.NewUnresolvedHandler(cfg.Snapshot.Dir)
	historyHandler := handlers.NewHistoryHandler(sqliteClient)

	queryValidator := validation.QueryMiddleware(validation.Config{Logger: appLogger.Log})

	api := app.Group("/api/v1")
	api.Get("/search", limiter.Middleware(), queryValidator, searchHandler.HandleSearch)
	api.Get("/stats", statsHandler.HandleStats)
	api.Get("/unresolved", unresolvedHandler.HandleUnresolved)
	api.Get("/searches/recent", historyHandler.HandleRecentSearches)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
