package services

import (
	"context"
	"fmt"

	"farmfresh-backend/internal/cache"
	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// WeatherFetcher retrieves current weather for a coordinate
type WeatherFetcher interface {
	Current(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error)
}

// WeatherService resolves per-city weather through the cache and the forecast API
type WeatherService struct {
	cities  *models.CityRegistry
	fetcher WeatherFetcher
	cache   cache.WeatherCache
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(cities *models.CityRegistry, fetcher WeatherFetcher, weatherCache cache.WeatherCache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		cities:  cities,
		fetcher: fetcher,
		cache:   weatherCache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Cities returns the supported city registry
func (s *WeatherService) Cities() *models.CityRegistry {
	return s.cities
}

// Lookup resolves a city name or returns a *models.NotFoundError
func (s *WeatherService) Lookup(name string) (models.City, error) {
	city, ok := s.cities.Lookup(name)
	if !ok {
		return models.City{}, &models.NotFoundError{Resource: "city", ID: name}
	}
	return city, nil
}

// Fetch calls the forecast API and caches the result.
// Failures are logged and returned wrapping models.ErrWeatherUnavailable.
func (s *WeatherService) Fetch(ctx context.Context, city models.City) (*models.WeatherSnapshot, error) {
	timer := s.metrics.NewTimer(s.metrics.WeatherFetchDuration)
	w, err := s.fetcher.Current(ctx, city.Latitude, city.Longitude)
	timer.ObserveDuration()

	if err != nil {
		s.metrics.RecordWeatherFetch("failure")
		s.logger.Warn(ctx, "[WEATHER_FETCH_FAILED] Weather unavailable", logging.Fields{
			"city":  city.Name,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w for %s: %v", models.ErrWeatherUnavailable, city.Name, err)
	}

	s.metrics.RecordWeatherFetch("success")
	if err := s.cache.Set(ctx, city.Name, w); err != nil {
		s.logger.Warn(ctx, "[CACHE_ERROR] Failed to cache weather", logging.Fields{
			"city":  city.Name,
			"error": err.Error(),
		})
	}
	return w, nil
}

// Cached returns the cached snapshot for a city without fetching
func (s *WeatherService) Cached(ctx context.Context, name string) (*models.WeatherSnapshot, bool) {
	return s.cache.Get(ctx, name)
}

// ForCity returns cached weather for a known city, fetching it on a miss
func (s *WeatherService) ForCity(ctx context.Context, name string) (*models.WeatherSnapshot, error) {
	city, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if w, ok := s.cache.Get(ctx, city.Name); ok {
		return w, nil
	}
	return s.Fetch(ctx, city)
}
