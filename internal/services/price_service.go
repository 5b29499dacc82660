package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/regression"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// DefaultRefreshInterval is how long a dataset stays fresh
const DefaultRefreshInterval = 24 * time.Hour

// PriceRequest holds price prediction inputs
type PriceRequest struct {
	Crop      string
	City      string
	BuyerQty  float64
	SellerQty float64
}

// PriceServiceConfig configures refresh behaviour
type PriceServiceConfig struct {
	RefreshInterval time.Duration
	RefreshOnRead   bool
}

type refreshState struct {
	refreshedAt time.Time
	dataset     *models.Dataset
}

// PriceService owns the dataset, trained model and refresh state.
// Regeneration is serialized by mu; readers use the atomically published state.
type PriceService struct {
	weather *WeatherService
	dataset *DatasetService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	interval      time.Duration
	refreshOnRead bool
	now           func() time.Time

	mu    sync.Mutex
	state atomic.Pointer[refreshState]
	model atomic.Pointer[regression.Model]
}

// NewPriceService creates a price service. Nothing is generated until the first refresh.
func NewPriceService(weather *WeatherService, dataset *DatasetService, cfg PriceServiceConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PriceService {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	metricsCollector.SetModelReady(false, 0)
	return &PriceService{
		weather:       weather,
		dataset:       dataset,
		logger:        logger,
		metrics:       metricsCollector,
		interval:      interval,
		refreshOnRead: cfg.RefreshOnRead,
		now:           time.Now,
	}
}

// RefreshIfNeeded regenerates the dataset and retrains the model when forced,
// never refreshed, or older than the refresh interval. Concurrent callers
// block on the same lock and skip regeneration once it is fresh.
// A context already cancelled on entry returns its error without regenerating.
func (s *PriceService) RefreshIfNeeded(ctx context.Context, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trigger := "forced"
	if !force {
		prev := s.state.Load()
		switch {
		case prev == nil:
			trigger = "initial"
		case s.now().Sub(prev.refreshedAt) > s.interval:
			trigger = "stale"
		default:
			return false, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Once started, regeneration runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	s.logger.Info(ctx, "[REFRESH_START] Regenerating market dataset", logging.Fields{"trigger": trigger})
	timer := s.metrics.NewTimer(s.metrics.DatasetRefreshDuration)

	ds := s.dataset.Generate(ctx)
	s.dataset.Persist(ctx, ds)

	model, err := TrainPriceModel(ds)
	if err != nil {
		s.model.Store(nil)
		s.metrics.SetModelReady(false, 0)
		s.logger.Warn(ctx, "[MODEL_DISABLED] Price model not trained", logging.Fields{
			"rows":  len(ds.Rows),
			"error": err.Error(),
		})
	} else {
		s.model.Store(model)
		s.metrics.SetModelReady(true, model.Rows)
		s.logger.Info(ctx, "[MODEL_TRAINED] Price model trained", logging.Fields{
			"rows":     model.Rows,
			"target":   model.Target,
			"features": strings.Join(model.Features, ","),
		})
	}

	s.state.Store(&refreshState{refreshedAt: s.now(), dataset: ds})
	duration := timer.ObserveDuration()
	s.metrics.DatasetRefreshTotal.WithLabelValues(trigger).Inc()

	s.logger.Info(ctx, "[REFRESH_COMPLETE] Market dataset refreshed", logging.Fields{
		"trigger":     trigger,
		"rows":        len(ds.Rows),
		"model_ready": model != nil,
		"duration_ms": duration.Milliseconds(),
	})
	return true, nil
}

func (s *PriceService) refreshOnReadPath(ctx context.Context) {
	if !s.refreshOnRead {
		return
	}
	if _, err := s.RefreshIfNeeded(ctx, false); err != nil {
		s.logger.Warn(ctx, "[REFRESH_SKIPPED] Refresh check failed", logging.Fields{"error": err.Error()})
	}
}

// Predict estimates a crop price for a city from its weather and the buyer/seller quantities.
// An unknown city returns *models.NotFoundError; an empty crop returns *models.ValidationError.
func (s *PriceService) Predict(ctx context.Context, req PriceRequest) (*models.PriceQuote, error) {
	if strings.TrimSpace(req.Crop) == "" {
		return nil, &models.ValidationError{Field: "crop", Message: "crop parameter required"}
	}
	if req.City == "" {
		req.City = models.DefaultCity
	}
	if _, err := s.weather.Lookup(req.City); err != nil {
		return nil, err
	}

	s.refreshOnReadPath(ctx)

	w, err := s.weather.ForCity(ctx, req.City)
	if err != nil && !errors.Is(err, models.ErrWeatherUnavailable) {
		return nil, err
	}

	base := models.FallbackBasePrice
	modelUsed := false
	if m := s.model.Load(); m != nil {
		predicted, err := m.Predict(featureVector(m.Features, w, req.BuyerQty, req.SellerQty))
		if err != nil {
			s.logger.Warn(ctx, "[PREDICT_ERROR] Model prediction failed, using fallback base price", logging.Fields{
				"crop":  req.Crop,
				"city":  req.City,
				"error": err.Error(),
			})
		} else {
			base = predicted
			modelUsed = true
		}
	}
	if modelUsed {
		s.metrics.RecordPrediction("model")
	} else {
		s.metrics.RecordPrediction("fallback")
	}

	quality := models.NeutralQuality
	if w != nil {
		quality = w.WeatherQualityIndex
	}
	multiplier := quality / models.NeutralQuality

	return &models.PriceQuote{
		Crop:                req.Crop,
		City:                req.City,
		BasePrice:           round(base, 2),
		PredictedPrice:      round(base*multiplier, 2),
		Multiplier:          round(multiplier, 3),
		WeatherQualityIndex: quality,
		Weather:             w,
		BuyerQty:            req.BuyerQty,
		SellerQty:           req.SellerQty,
		ModelUsed:           modelUsed,
		Timestamp:           s.now().UTC(),
	}, nil
}

// Weather returns the current weather for one city
func (s *PriceService) Weather(ctx context.Context, city string) (*models.WeatherSnapshot, error) {
	return s.weather.ForCity(ctx, city)
}

// Overview returns every city's weather plus dataset metadata.
// Cities whose weather is unavailable are listed with a nil snapshot.
func (s *PriceService) Overview(ctx context.Context) *models.WeatherOverview {
	s.refreshOnReadPath(ctx)

	names := s.weather.Cities().Names()
	sorted := append([]string{}, names...)
	sort.Strings(sorted)

	locations := make([]models.CityWeatherView, 0, len(sorted))
	for _, name := range sorted {
		w, _ := s.weather.ForCity(ctx, name)
		locations = append(locations, models.CityWeatherView{City: name, Weather: w})
	}

	return &models.WeatherOverview{
		Locations:          locations,
		AvailableLocations: names,
		GeneratedAt:        s.now().UTC(),
		DatasetMeta: models.DatasetMeta{
			LastRefreshed:  s.LastRefreshed(),
			GeneratedCSV:   filepath.Base(s.dataset.CSVPath()),
			ModelAvailable: s.ModelReady(),
		},
		BaseMarket: models.DefaultCity,
	}
}

// Status reports refresh timing and model readiness without triggering a refresh
func (s *PriceService) Status() *models.DatasetStatus {
	return &models.DatasetStatus{
		AvailableLocations: s.weather.Cities().Names(),
		LastRefreshed:      s.LastRefreshed(),
		GeneratedCSV:       filepath.Base(s.dataset.CSVPath()),
		ModelReady:         s.ModelReady(),
	}
}

// Cities returns supported city names in registry order
func (s *PriceService) Cities() []string {
	return s.weather.Cities().Names()
}

// LastRefreshed returns when the dataset was last regenerated, or nil
func (s *PriceService) LastRefreshed() *time.Time {
	st := s.state.Load()
	if st == nil {
		return nil
	}
	t := st.refreshedAt.UTC()
	return &t
}

// ModelReady reports whether a trained model is available
func (s *PriceService) ModelReady() bool {
	return s.model.Load() != nil
}

// CurrentDataset returns the most recent dataset or models.ErrNoDataset
func (s *PriceService) CurrentDataset() (*models.Dataset, error) {
	st := s.state.Load()
	if st == nil || st.dataset == nil {
		return nil, models.ErrNoDataset
	}
	return st.dataset, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
