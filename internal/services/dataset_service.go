package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/repository"
	"farmfresh-backend/internal/store"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// Sampling ranges for generated market values
const (
	minBasePrice = 20.0
	maxBasePrice = 60.0
	minIndex     = 0.5
	maxIndex     = 1.5
)

// CSVHeader is the column order of the generated dataset file
var CSVHeader = []string{
	"date", "city", "crop",
	models.FeatureTemperature, models.FeatureRainChance, models.FeatureHumidity, models.FeatureWindSpeed,
	"weather_quality_index", "timestamp",
	models.ColumnBasePrice, models.FeatureDemand, models.FeatureSupply, models.ColumnEstimatedPrice,
}

// DatasetService builds the daily market dataset and persists it
type DatasetService struct {
	weather *WeatherService
	csvPath string
	store   store.SnapshotStore
	archive repository.DatasetArchive
	rng     *rand.Rand
	now     func() time.Time
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDatasetService creates a dataset generator writing its CSV to csvPath
func NewDatasetService(weather *WeatherService, csvPath string, snapshots store.SnapshotStore, archive repository.DatasetArchive, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DatasetService {
	return &DatasetService{
		weather: weather,
		csvPath: csvPath,
		store:   snapshots,
		archive: archive,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CSVPath returns where the dataset file is written
func (s *DatasetService) CSVPath() string {
	return s.csvPath
}

// Generate fetches weather for every city and samples a row per crop.
// Cities whose weather cannot be fetched are skipped. Nothing is written; see Persist.
// Not safe for concurrent use; callers serialize through the refresh lock.
func (s *DatasetService) Generate(ctx context.Context) *models.Dataset {
	generatedAt := s.now().UTC()
	date := generatedAt.Format("2006-01-02")
	ds := &models.Dataset{Date: date, GeneratedAt: generatedAt}

	for _, city := range s.weather.Cities().All() {
		w, err := s.weather.Fetch(ctx, city)
		if err != nil {
			continue
		}
		for _, crop := range models.Crops {
			base := s.uniform(minBasePrice, maxBasePrice)
			demand := s.uniform(minIndex, maxIndex)
			supply := s.uniform(minIndex, maxIndex)
			ds.Rows = append(ds.Rows, models.NewDatasetRow(date, city.Name, crop, w, base, demand, supply))
		}
	}

	s.metrics.DatasetRows.Set(float64(len(ds.Rows)))
	s.logger.Info(ctx, "[DATASET_GENERATED] Dataset generated", logging.Fields{
		"date":   date,
		"rows":   len(ds.Rows),
		"cities": len(ds.Cities()),
	})
	return ds
}

func (s *DatasetService) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Persist overwrites the dataset file, then upserts the daily snapshot and archives
// the rows when the dataset is non-empty. Every sink is best-effort.
func (s *DatasetService) Persist(ctx context.Context, ds *models.Dataset) {
	if err := s.writeFile(ds.Rows); err != nil {
		s.metrics.RecordPersistenceError("csv")
		s.logger.Error(ctx, "[DATASET_CSV_ERROR] Failed to write dataset file", logging.Fields{
			"path": s.csvPath,
		}, err)
	} else {
		s.logger.Info(ctx, "[DATASET_CSV] Dataset saved", logging.Fields{"path": s.csvPath})
	}

	if len(ds.Rows) == 0 {
		return
	}

	snapshot := s.dailySnapshot(ctx, ds)
	if err := s.store.UpsertDaily(ctx, snapshot); err != nil {
		s.metrics.RecordPersistenceError("snapshot_store")
		s.logger.Error(ctx, "[SNAPSHOT_STORE_ERROR] Failed to persist daily snapshot", logging.Fields{
			"date": snapshot.Date,
		}, err)
	}

	if err := s.archive.SaveRows(ctx, ds.Rows); err != nil {
		s.metrics.RecordPersistenceError("archive")
		s.logger.Error(ctx, "[DATASET_ARCHIVE_ERROR] Failed to archive dataset rows", logging.Fields{
			"rows": len(ds.Rows),
		}, err)
	}
}

// ArchiveHistory lists the most recently archived dates with their row counts
func (s *DatasetService) ArchiveHistory(ctx context.Context, days int) ([]repository.ArchivedDay, error) {
	if days <= 0 {
		return nil, nil
	}
	return s.archive.History(ctx, days)
}

// dailySnapshot collects cached weather for every city, sorted by name
func (s *DatasetService) dailySnapshot(ctx context.Context, ds *models.Dataset) models.DailySnapshot {
	names := s.weather.Cities().Names()
	sort.Strings(names)

	doc := models.DailySnapshot{Date: ds.Date, GeneratedAt: ds.GeneratedAt}
	for _, name := range names {
		if w, ok := s.weather.Cached(ctx, name); ok {
			doc.Cities = append(doc.Cities, models.CityWeather{City: name, WeatherSnapshot: *w})
		}
	}
	return doc
}

func (s *DatasetService) writeFile(rows []models.DatasetRow) error {
	if err := os.MkdirAll(filepath.Dir(s.csvPath), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	f, err := os.Create(s.csvPath)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes the header and one record per row
func WriteCSV(w io.Writer, rows []models.DatasetRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date, r.City, r.Crop,
			formatFloat(r.TemperatureC), formatFloat(r.RainChancePct), formatFloat(r.HumidityPct), formatFloat(r.WindSpeedKph),
			formatFloat(r.WeatherQualityIndex), r.Timestamp.Format(time.RFC3339),
			formatFloat(r.BasePrice), formatFloat(r.DemandIndex), formatFloat(r.SupplyIndex), formatFloat(r.EstimatedPrice),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
