// Package export renders the market dataset as an Excel workbook.
package export

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"farmfresh-backend/internal/models"
)

// Sheet names in the generated workbook
const (
	DatasetSheet = "Dataset"
	SummarySheet = "Crop Summary"
)

var datasetHeaders = []string{
	"Date", "City", "Crop",
	"Temperature (°C)", "Rain Chance (%)", "Humidity (%)", "Wind Speed (kph)",
	"Quality Index", "Observed At",
	"Base Price", "Demand Index", "Supply Index", "Estimated Price",
}

var summaryHeaders = []string{"Crop", "Rows", "Mean Base Price", "Mean Estimated Price", "Std Estimated Price"}

// Workbook builds an xlsx file with the full dataset and a per-crop summary
func Workbook(ds *models.Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetDocProps(&excelize.DocProperties{
		Title:       fmt.Sprintf("Market Dataset %s", ds.Date),
		Subject:     "Weather-driven produce prices",
		Creator:     "farmfresh-backend",
		Description: fmt.Sprintf("Generated at %s", ds.GeneratedAt.Format(time.RFC3339)),
		Created:     ds.GeneratedAt.Format(time.RFC3339),
	})

	if err := writeDatasetSheet(f, ds.Rows); err != nil {
		return nil, fmt.Errorf("failed to create dataset sheet: %w", err)
	}
	if err := writeSummarySheet(f, ds.Rows); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	if idx, err := f.GetSheetIndex(DatasetSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDatasetSheet(f *excelize.File, rows []models.DatasetRow) error {
	if _, err := f.NewSheet(DatasetSheet); err != nil {
		return err
	}
	if err := writeHeader(f, DatasetSheet, datasetHeaders); err != nil {
		return err
	}

	for i, r := range rows {
		values := []interface{}{
			r.Date, r.City, r.Crop,
			r.TemperatureC, r.RainChancePct, r.HumidityPct, r.WindSpeedKph,
			r.WeatherQualityIndex, r.Timestamp.Format("2006-01-02 15:04"),
			round2(r.BasePrice), r.DemandIndex, r.SupplyIndex, round2(r.EstimatedPrice),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DatasetSheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, rows []models.DatasetRow) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeHeader(f, SummarySheet, summaryHeaders); err != nil {
		return err
	}

	byCrop := make(map[string][]models.DatasetRow)
	for _, r := range rows {
		byCrop[r.Crop] = append(byCrop[r.Crop], r)
	}

	line := 2
	for _, crop := range models.Crops {
		group := byCrop[crop]
		if len(group) == 0 {
			continue
		}
		base := make([]float64, len(group))
		estimated := make([]float64, len(group))
		for i, r := range group {
			base[i] = r.BasePrice
			estimated[i] = r.EstimatedPrice
		}
		mean, std := stat.PopMeanStdDev(estimated, nil)

		values := []interface{}{crop, len(group), round2(stat.Mean(base, nil)), round2(mean), round2(std)}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return err
		}
		line++
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
