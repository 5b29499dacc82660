package services

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmfresh-backend/internal/cache"
	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/repository"
	"farmfresh-backend/internal/store"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// stubFetcher returns fixed weather, failing for coordinates listed in fail
type stubFetcher struct {
	weather *models.WeatherSnapshot
	fail    map[float64]bool
	calls   atomic.Int64
	delay   time.Duration
}

func (f *stubFetcher) Current(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.weather == nil || f.fail[lat] {
		return nil, errors.New("forecast API unreachable")
	}
	w := *f.weather
	return &w, nil
}

type recordingStore struct {
	mu        sync.Mutex
	snapshots []models.DailySnapshot
	err       error
}

func (s *recordingStore) UpsertDaily(_ context.Context, snap models.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return s.err
}

type fixture struct {
	fetcher *stubFetcher
	store   *recordingStore
	metrics *metrics.Collector
	csvPath string
	dataset *DatasetService
	price   *PriceService
}

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("farmfresh-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(t *testing.T, fetcher *stubFetcher, refreshOnRead bool) *fixture {
	t.Helper()
	logger := testLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	csvPath := filepath.Join(t.TempDir(), "generated", "market_dataset.csv")
	snapshots := &recordingStore{}

	weather := NewWeatherService(models.DefaultCities(), fetcher, cache.NewMemoryCache(), logger, collector)
	dataset := NewDatasetService(weather, csvPath, snapshots, repository.NoopDatasetArchive{}, logger, collector)
	price := NewPriceService(weather, dataset, PriceServiceConfig{RefreshOnRead: refreshOnRead}, logger, collector)

	return &fixture{
		fetcher: fetcher,
		store:   snapshots,
		metrics: collector,
		csvPath: csvPath,
		dataset: dataset,
		price:   price,
	}
}

func mildWeather() *models.WeatherSnapshot {
	return models.NewWeatherSnapshot(22, 0, 55, 5, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestPredict_FallsBackWithoutModelOrWeather(t *testing.T) {
	fx := newFixture(t, &stubFetcher{}, false)

	quote, err := fx.price.Predict(context.Background(), PriceRequest{
		Crop:      "Tomato",
		BuyerQty:  models.DefaultBuyerQty,
		SellerQty: models.DefaultSellerQty,
	})
	require.NoError(t, err)

	assert.Equal(t, "Coimbatore", quote.City)
	assert.Equal(t, 40.0, quote.BasePrice)
	assert.Equal(t, 1.0, quote.Multiplier)
	assert.Equal(t, quote.BasePrice, quote.PredictedPrice)
	assert.Equal(t, 50.0, quote.WeatherQualityIndex)
	assert.Nil(t, quote.Weather)
	assert.False(t, quote.ModelUsed)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PredictionsTotal.WithLabelValues("fallback")))
}

func TestPredict_UsesTrainedModel(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, true)

	quote, err := fx.price.Predict(context.Background(), PriceRequest{Crop: "Onion", City: "Salem", BuyerQty: 10, SellerQty: 20})
	require.NoError(t, err)

	require.True(t, fx.price.ModelReady())
	assert.True(t, quote.ModelUsed)
	assert.Equal(t, 100.0, quote.WeatherQualityIndex)
	assert.Equal(t, 2.0, quote.Multiplier)
	assert.GreaterOrEqual(t, quote.BasePrice, 20.0)
	assert.LessOrEqual(t, quote.BasePrice, 60.0)
	assert.InDelta(t, quote.BasePrice*2, quote.PredictedPrice, 0.011)
	require.NotNil(t, quote.Weather)
	assert.Equal(t, 22.0, quote.Weather.TemperatureC)
	assert.NotNil(t, fx.price.LastRefreshed())
}

func TestPredict_RejectsBadInput(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, true)
	ctx := context.Background()

	_, err := fx.price.Predict(ctx, PriceRequest{Crop: "Tomato", City: "Chennai"})
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Chennai", nf.ID)

	_, err = fx.price.Predict(ctx, PriceRequest{Crop: "  ", City: "Salem"})
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "crop", ve.Field)

	assert.Zero(t, fx.fetcher.calls.Load(), "rejected requests never trigger a refresh")
}

func TestRefreshIfNeeded_ConcurrentTriggersCollapse(t *testing.T) {
	fetcher := &stubFetcher{weather: mildWeather(), delay: 5 * time.Millisecond}
	fx := newFixture(t, fetcher, false)

	var refreshed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := fx.price.RefreshIfNeeded(context.Background(), false)
			assert.NoError(t, err)
			if ok {
				refreshed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), refreshed.Load())
	assert.Equal(t, int64(10), fetcher.calls.Load(), "one fetch per city, one pass")
	assert.Len(t, fx.store.snapshots, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.DatasetRefreshTotal.WithLabelValues("initial")))
}

func TestRefreshIfNeeded_ForcedAlwaysRegenerates(t *testing.T) {
	salem, _ := models.DefaultCities().Lookup("Salem")
	fetcher := &stubFetcher{weather: mildWeather(), fail: map[float64]bool{salem.Latitude: true}}
	fx := newFixture(t, fetcher, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := fx.price.RefreshIfNeeded(ctx, true)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	records := readCSV(t, fx.csvPath)
	assert.Equal(t, CSVHeader, records[0])
	assert.Len(t, records, 1+9*len(models.Crops))
	for _, r := range records[1:] {
		assert.NotEqual(t, "Salem", r[1])
	}

	ds, err := fx.price.CurrentDataset()
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 45)
	assert.NotContains(t, ds.Cities(), "Salem")
	assert.Equal(t, 2.0, testutil.ToFloat64(fx.metrics.DatasetRefreshTotal.WithLabelValues("forced")))
}

func TestRefreshIfNeeded_StaleAfterInterval(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, false)
	ctx := context.Background()

	clock := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	fx.price.now = func() time.Time { return clock }

	ok, err := fx.price.RefreshIfNeeded(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(23 * time.Hour)
	ok, _ = fx.price.RefreshIfNeeded(ctx, false)
	assert.False(t, ok, "still fresh")

	clock = clock.Add(2 * time.Hour)
	ok, _ = fx.price.RefreshIfNeeded(ctx, false)
	assert.True(t, ok, "older than 24h")
	assert.Equal(t, clock, *fx.price.LastRefreshed())
}

func TestRefreshIfNeeded_CancelledContext(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := fx.price.RefreshIfNeeded(ctx, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, fx.price.LastRefreshed())
}

// cancellingFetcher cancels the caller's context on the given call and records
// whether any fetch observed a cancelled context
type cancellingFetcher struct {
	stubFetcher
	cancelOn   int64
	cancel     context.CancelFunc
	sawExpired atomic.Bool
}

func (f *cancellingFetcher) Current(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error) {
	if f.calls.Load()+1 == f.cancelOn {
		f.cancel()
	}
	if ctx.Err() != nil {
		f.sawExpired.Store(true)
	}
	return f.stubFetcher.Current(ctx, lat, lon)
}

func TestRefreshIfNeeded_CallerCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{stubFetcher: stubFetcher{weather: mildWeather()}, cancelOn: 3, cancel: cancel}

	logger := testLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	csvPath := filepath.Join(t.TempDir(), "market_dataset.csv")
	snapshots := &recordingStore{}
	weather := NewWeatherService(models.DefaultCities(), fetcher, cache.NewMemoryCache(), logger, collector)
	dataset := NewDatasetService(weather, csvPath, snapshots, repository.NoopDatasetArchive{}, logger, collector)
	price := NewPriceService(weather, dataset, PriceServiceConfig{}, logger, collector)

	ok, err := price.RefreshIfNeeded(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Error(t, ctx.Err())
	assert.False(t, fetcher.sawExpired.Load())

	full := models.DefaultCities().Len() * len(models.Crops)
	assert.Len(t, readCSV(t, csvPath), 1+full)
	ds, err := price.CurrentDataset()
	require.NoError(t, err)
	assert.Len(t, ds.Rows, full)
	assert.NotNil(t, price.LastRefreshed())
	require.Len(t, snapshots.snapshots, 1)
	assert.Len(t, snapshots.snapshots[0].Cities, models.DefaultCities().Len())
}

func TestRefresh_PersistenceFailuresAreNotFatal(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, false)
	fx.store.err = errors.New("mongo down")

	ok, err := fx.price.RefreshIfNeeded(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, fx.price.ModelReady())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PersistenceErrorsTotal.WithLabelValues("snapshot_store")))
	assert.FileExists(t, fx.csvPath)
}

func TestRefresh_NoWeatherDisablesModel(t *testing.T) {
	fx := newFixture(t, &stubFetcher{}, false)

	ok, err := fx.price.RefreshIfNeeded(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, fx.price.ModelReady())
	assert.Len(t, readCSV(t, fx.csvPath), 1, "header only")
	assert.Empty(t, fx.store.snapshots, "empty datasets are not upserted")

	status := fx.price.Status()
	assert.False(t, status.ModelReady)
	assert.NotNil(t, status.LastRefreshed)
	assert.Equal(t, "market_dataset.csv", status.GeneratedCSV)
}

func TestDailySnapshot_CitiesSortedByName(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, false)

	_, err := fx.price.RefreshIfNeeded(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, fx.store.snapshots, 1)
	snap := fx.store.snapshots[0]
	var names []string
	for _, c := range snap.Cities {
		names = append(names, c.City)
	}
	assert.Len(t, names, 10)
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, snap.GeneratedAt.Format("2006-01-02"), snap.Date)
}

func TestOverview(t *testing.T) {
	salem, _ := models.DefaultCities().Lookup("Salem")
	fx := newFixture(t, &stubFetcher{weather: mildWeather(), fail: map[float64]bool{salem.Latitude: true}}, true)

	overview := fx.price.Overview(context.Background())

	assert.Equal(t, "Coimbatore", overview.BaseMarket)
	assert.Equal(t, models.DefaultCities().Names(), overview.AvailableLocations)
	require.Len(t, overview.Locations, 10)
	for _, loc := range overview.Locations {
		if loc.City == "Salem" {
			assert.Nil(t, loc.Weather)
		} else {
			assert.NotNil(t, loc.Weather, loc.City)
		}
	}
	assert.True(t, overview.DatasetMeta.ModelAvailable)
	assert.NotNil(t, overview.DatasetMeta.LastRefreshed)
}

func TestWeatherService_ForCity(t *testing.T) {
	fx := newFixture(t, &stubFetcher{weather: mildWeather()}, false)
	ctx := context.Background()

	_, err := fx.price.Weather(ctx, "Atlantis")
	var nf *models.NotFoundError
	assert.True(t, errors.As(err, &nf))

	w, err := fx.price.Weather(ctx, "Erode")
	require.NoError(t, err)
	assert.Equal(t, 100.0, w.WeatherQualityIndex)

	_, err = fx.price.Weather(ctx, "Erode")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fx.fetcher.calls.Load(), "second lookup served from cache")

	fx.fetcher.weather = nil
	_, err = fx.price.Weather(ctx, "Karur")
	assert.ErrorIs(t, err, models.ErrWeatherUnavailable)
}

func TestCurrentDataset_BeforeRefresh(t *testing.T) {
	fx := newFixture(t, &stubFetcher{}, false)
	_, err := fx.price.CurrentDataset()
	assert.ErrorIs(t, err, models.ErrNoDataset)
}

func TestFeatureVector(t *testing.T) {
	cols := []string{models.FeatureTemperature, models.FeatureDemand, models.FeatureSupply, models.FeatureWindSpeed}

	v := featureVector(cols, mildWeather(), 5, 100)
	assert.Equal(t, []float64{22, 0.5, 2.0, 5}, v)

	v = featureVector(cols, nil, 40, 10)
	assert.Equal(t, []float64{0, 2.0, 0.5, 0}, v)
}

var _ store.SnapshotStore = (*recordingStore)(nil)

type memoryArchive struct {
	mu   sync.Mutex
	rows []models.DatasetRow
}

func (a *memoryArchive) SaveRows(_ context.Context, rows []models.DatasetRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, rows...)
	return nil
}

func (a *memoryArchive) CountRows(_ context.Context, date string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, r := range a.rows {
		if r.Date == date {
			n++
		}
	}
	return n, nil
}

func (a *memoryArchive) History(_ context.Context, days int) ([]repository.ArchivedDay, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range a.rows {
		counts[r.Date]++
	}
	var history []repository.ArchivedDay
	for date, n := range counts {
		history = append(history, repository.ArchivedDay{Date: date, Rows: n})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date > history[j].Date })
	if len(history) > days {
		history = history[:days]
	}
	return history, nil
}

func TestDatasetService_ArchiveHistory(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	archive := &memoryArchive{}
	weather := NewWeatherService(models.DefaultCities(), &stubFetcher{weather: mildWeather()}, cache.NewMemoryCache(), logger, collector)
	dataset := NewDatasetService(weather, filepath.Join(t.TempDir(), "market_dataset.csv"), store.NoopStore{}, archive, logger, collector)

	history, err := dataset.ArchiveHistory(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, history)

	ds := dataset.Generate(ctx)
	dataset.Persist(ctx, ds)
	require.NoError(t, archive.SaveRows(ctx, []models.DatasetRow{{Date: "2000-01-01", City: "Salem", Crop: "Tomato"}}))

	history, err = dataset.ArchiveHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, repository.ArchivedDay{Date: ds.Date, Rows: len(ds.Rows)}, history[0])
	assert.Equal(t, repository.ArchivedDay{Date: "2000-01-01", Rows: 1}, history[1])

	history, err = dataset.ArchiveHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	history, err = dataset.ArchiveHistory(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, history)
}
