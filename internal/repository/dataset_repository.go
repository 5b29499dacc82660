package repository

import (
	"context"
	"fmt"
	"time"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/database"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// DatasetArchive keeps a history of generated dataset rows
type DatasetArchive interface {
	SaveRows(ctx context.Context, rows []models.DatasetRow) error
	CountRows(ctx context.Context, date string) (int, error)
	History(ctx context.Context, days int) ([]ArchivedDay, error)
}

// ArchivedDay summarises the rows archived for one snapshot date
type ArchivedDay struct {
	Date string `db:"snapshot_date"`
	Rows int    `db:"row_count"`
}

// datasetRepository archives rows to PostgreSQL
type datasetRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDatasetRepository creates a PostgreSQL-backed dataset archive
func NewDatasetRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) DatasetArchive {
	return &datasetRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SaveRows upserts rows keyed by (snapshot_date, city, crop) in a single transaction
func (r *datasetRepository) SaveRows(ctx context.Context, rows []models.DatasetRow) error {
	if len(rows) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.DBQueryDuration.WithLabelValues("archive_dataset_rows").Observe(duration.Seconds())
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Dataset rows archived", logging.Fields{
			"count":       len(rows),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_dataset_rows (
			snapshot_date, city, crop,
			temperature_c, rain_chance_pct, humidity_pct, wind_speed_kph,
			weather_quality_index, observed_at,
			base_price, demand_index, supply_index, estimated_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (snapshot_date, city, crop) DO UPDATE SET
			temperature_c = EXCLUDED.temperature_c,
			rain_chance_pct = EXCLUDED.rain_chance_pct,
			humidity_pct = EXCLUDED.humidity_pct,
			wind_speed_kph = EXCLUDED.wind_speed_kph,
			weather_quality_index = EXCLUDED.weather_quality_index,
			observed_at = EXCLUDED.observed_at,
			base_price = EXCLUDED.base_price,
			demand_index = EXCLUDED.demand_index,
			supply_index = EXCLUDED.supply_index,
			estimated_price = EXCLUDED.estimated_price
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Date,
			row.City,
			row.Crop,
			row.TemperatureC,
			row.RainChancePct,
			row.HumidityPct,
			row.WindSpeedKph,
			row.WeatherQualityIndex,
			row.Timestamp,
			row.BasePrice,
			row.DemandIndex,
			row.SupplyIndex,
			row.EstimatedPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dataset row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountRows returns how many rows are archived for a date
func (r *datasetRepository) CountRows(ctx context.Context, date string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM market_dataset_rows WHERE snapshot_date = $1`
	if err := r.db.GetContext(ctx, "count_dataset_rows", &count, query, date); err != nil {
		return 0, fmt.Errorf("failed to count dataset rows: %w", err)
	}
	return count, nil
}

// History returns the most recent archived dates, newest first
func (r *datasetRepository) History(ctx context.Context, days int) ([]ArchivedDay, error) {
	query := `
		SELECT to_char(snapshot_date, 'YYYY-MM-DD') AS snapshot_date, COUNT(*) AS row_count
		FROM market_dataset_rows
		GROUP BY snapshot_date
		ORDER BY snapshot_date DESC
		LIMIT $1
	`
	var history []ArchivedDay
	if err := r.db.SelectContext(ctx, "dataset_history", &history, query, days); err != nil {
		return nil, fmt.Errorf("failed to load dataset history: %w", err)
	}
	return history, nil
}

// NoopDatasetArchive discards rows when no database is configured
type NoopDatasetArchive struct{}

// SaveRows does nothing
func (NoopDatasetArchive) SaveRows(context.Context, []models.DatasetRow) error { return nil }

// CountRows always reports zero
func (NoopDatasetArchive) CountRows(context.Context, string) (int, error) { return 0, nil }

// History is always empty
func (NoopDatasetArchive) History(context.Context, int) ([]ArchivedDay, error) { return nil, nil }
