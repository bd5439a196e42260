package setup

import (
	"context"

	"github.com/harborchat/harbor/internal/database"
	"github.com/harborchat/harbor/internal/events"
	"github.com/harborchat/harbor/internal/idgen"
	"github.com/harborchat/harbor/internal/redis"
	"github.com/harborchat/harbor/internal/setup/config"
	"github.com/harborchat/harbor/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config   // Application configuration
	Logger       *zap.Logger      // Main application logger
	DBLogger     *zap.Logger      // Database-specific logger
	DB           database.Client  // Database connection pool
	RedisManager *redis.Manager   // Redis connection manager
	Publisher    events.Publisher // Outbound event stream
	Generator    *idgen.Generator // Snowflake ID generator
	pprofServer  *pprofServer     // Debug HTTP server for pprof
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, autoMigrate bool) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := telemetry.GetLoggers(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Redis, logger)

	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		return nil, err
	}

	eventsClient, err := redisManager.GetClient(redis.EventsDBIndex)
	if err != nil {
		return nil, err
	}

	publisher := events.NewRedisPublisher(eventsClient, cfg.Events.Workers, logger)

	gen, err := idgen.NewGenerator(cfg.Snowflake.WorkerID)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, gen, cacheClient, publisher, dbLogger, autoMigrate)
	if err != nil {
		return nil, err
	}

	// Start pprof server if enabled
	var pprofSrv *pprofServer

	if cfg.Debug.EnablePprof {
		srv, err := startPprofServer(ctx, cfg.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		Publisher:    publisher,
		Generator:    gen,
		pprofServer:  pprofSrv,
	}, nil
}

// Cleanup handles graceful shutdown of all components in reverse order of
// their initialization.
func (a *App) Cleanup(ctx context.Context) {
	if a.pprofServer != nil {
		a.pprofServer.stop(ctx, a.Logger)
	}

	a.Publisher.Close()

	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	a.RedisManager.Close()

	_ = a.Logger.Sync()
	_ = a.DBLogger.Sync()
}
