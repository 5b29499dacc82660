package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmfresh-backend/internal/config"
	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/services"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Weather: config.WeatherConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond},
		Dataset: config.DatasetConfig{Dir: t.TempDir(), File: "market_dataset.csv"},
		Refresh: config.RefreshConfig{Interval: 24 * time.Hour},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	logger := logging.NewStructuredLogger("farmfresh-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)

	a, err := New(context.Background(), cfg, logger, metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestNew_FallsBackWithoutExternalStores(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	assert.Empty(t, a.HealthCheckers)
	assert.Equal(t, filepath.Join(cfg.Dataset.Dir, "market_dataset.csv"), a.Dataset.CSVPath())
	assert.Equal(t, models.DefaultCities().Names(), a.Prices.Cities())

	_, err := a.Classifier.ClassifyFile(context.Background(), "leaf.jpg")
	assert.ErrorIs(t, err, models.ErrClassifierUnavailable)

	ctx := context.Background()
	_, err = a.Auth.Register(ctx, models.Registration{Email: "Meena@Example.com", Password: "pw"})
	require.NoError(t, err)
	user, err := a.Auth.Login(ctx, "meena@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUserType, user.UserType)
}

func TestNew_UnreachableStoresDegrade(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = "postgres://nobody@127.0.0.1:1/farmfresh?sslmode=disable&connect_timeout=1"
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Mongo = config.MongoConfig{Enabled: true, URI: "mongodb://127.0.0.1:1/", Database: "farmfresh", Collection: "weather_snapshots", ConnectTimeout: 200 * time.Millisecond}

	a := newTestApp(t, cfg)
	assert.Empty(t, a.HealthCheckers)

	// Refresh still completes with every city unavailable
	refreshed, err := a.Prices.RefreshIfNeeded(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.False(t, a.Prices.ModelReady())

	quote, err := a.Prices.Predict(context.Background(), services.PriceRequest{Crop: "Tomato", BuyerQty: 1, SellerQty: 5})
	require.NoError(t, err)
	assert.Nil(t, quote.Weather)
	assert.Equal(t, models.FallbackBasePrice, quote.PredictedPrice)
}

func TestClose_JoinsErrors(t *testing.T) {
	a := &App{}
	var order []int
	a.closers = append(a.closers,
		func(context.Context) error { order = append(order, 1); return errors.New("first") },
		func(context.Context) error { order = append(order, 2); return nil },
	)

	err := a.Close(context.Background())
	assert.ErrorContains(t, err, "first")
	assert.Equal(t, []int{2, 1}, order)
}
