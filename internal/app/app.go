// Package app assembles services and their optional backing stores from configuration.
package app

import (
	"context"
	"errors"

	"farmfresh-backend/internal/cache"
	"farmfresh-backend/internal/classifier"
	"farmfresh-backend/internal/config"
	"farmfresh-backend/internal/handlers"
	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/repository"
	"farmfresh-backend/internal/services"
	"farmfresh-backend/internal/store"
	"farmfresh-backend/pkg/database"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
	"farmfresh-backend/pkg/openmeteo"
)

// App holds the wired services and everything that must be closed on shutdown
type App struct {
	Weather    *services.WeatherService
	Dataset    *services.DatasetService
	Prices     *services.PriceService
	Auth       *services.AuthService
	Classifier classifier.Classifier

	// HealthCheckers lists the external stores that were successfully connected
	HealthCheckers map[string]handlers.HealthChecker

	closers []func(ctx context.Context) error
}

// New connects optional stores and builds the services.
// Postgres, MongoDB and Redis are each optional: when unconfigured or unreachable
// the in-memory or no-op equivalent is used and a warning is logged.
func New(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*App, error) {
	a := &App{HealthCheckers: make(map[string]handlers.HealthChecker)}

	var users repository.UserRepository = repository.NewMemoryUserRepository()
	var archive repository.DatasetArchive = repository.NoopDatasetArchive{}
	if cfg.Database.URL != "" {
		db, err := database.NewPostgresDB(&database.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger, metricsCollector)
		if err != nil {
			logger.Warn(ctx, "[STARTUP_WARN] PostgreSQL unavailable, using in-memory user store", logging.Fields{"error": err.Error()})
		} else {
			users = repository.NewUserRepository(db, logger, metricsCollector)
			archive = repository.NewDatasetRepository(db, logger, metricsCollector)
			a.HealthCheckers["postgres"] = db
			a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		}
	}

	var snapshots store.SnapshotStore = store.NoopStore{}
	if cfg.Mongo.Enabled {
		mongoStore, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		}, logger)
		if err != nil {
			logger.Warn(ctx, "[STARTUP_WARN] MongoDB unavailable, daily snapshots will not be stored", logging.Fields{"error": err.Error()})
		} else {
			snapshots = mongoStore
			a.HealthCheckers["mongo"] = mongoStore
			a.closers = append(a.closers, mongoStore.Close)
		}
	}

	var weatherCache cache.WeatherCache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, logger)
		if err != nil {
			logger.Warn(ctx, "[STARTUP_WARN] Redis unavailable, using in-memory weather cache", logging.Fields{"error": err.Error()})
		} else {
			weatherCache = redisCache
			a.HealthCheckers["redis"] = redisCache
			a.closers = append(a.closers, func(context.Context) error { return redisCache.Close() })
		}
	}

	fetcher := openmeteo.NewClient(openmeteo.Config{
		BaseURL:       cfg.Weather.BaseURL,
		Timeout:       cfg.Weather.Timeout,
		RatePerSecond: cfg.Weather.RatePerSecond,
	})

	a.Weather = services.NewWeatherService(models.DefaultCities(), fetcher, weatherCache, logger, metricsCollector)
	a.Dataset = services.NewDatasetService(a.Weather, cfg.DatasetPath(), snapshots, archive, logger, metricsCollector)
	a.Prices = services.NewPriceService(a.Weather, a.Dataset, services.PriceServiceConfig{
		RefreshInterval: cfg.Refresh.Interval,
		RefreshOnRead:   cfg.Refresh.OnRead,
	}, logger, metricsCollector)
	a.Auth = services.NewAuthService(users, logger, metricsCollector)

	a.Classifier = classifier.Unavailable{}
	if cfg.Classifier.URL != "" {
		a.Classifier = classifier.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Timeout)
	}

	return a, nil
}

// Close releases connections in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
