package services

import (
	"errors"
	"math"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/regression"
)

var priceModelSpec = regression.TrainSpec{
	Features: models.ModelFeatures,
	Targets:  []string{models.ColumnEstimatedPrice, models.ColumnBasePrice},
	Forest:   regression.DefaultForestConfig(),
}

// DatasetTable converts dataset rows into a training table
func DatasetTable(ds *models.Dataset) *regression.Table {
	columns := append(append([]string{}, models.ModelFeatures...), models.ColumnBasePrice, models.ColumnEstimatedPrice)
	t := &regression.Table{Columns: columns}
	for _, row := range ds.Rows {
		values := make([]float64, len(columns))
		for i, c := range columns {
			v, ok := row.Value(c)
			if !ok {
				v = math.NaN()
			}
			values[i] = v
		}
		t.Rows = append(t.Rows, values)
	}
	return t
}

// TrainPriceModel fits the price model on a dataset
func TrainPriceModel(ds *models.Dataset) (*regression.Model, error) {
	if ds == nil || len(ds.Rows) == 0 {
		return nil, errors.New("dataset is empty")
	}
	return regression.Train(DatasetTable(ds), priceModelSpec)
}

// featureVector orders inputs to match the model's feature columns.
// Weather slots default to 0 when no snapshot is available.
func featureVector(columns []string, w *models.WeatherSnapshot, buyerQty, sellerQty float64) []float64 {
	v := make([]float64, len(columns))
	for i, c := range columns {
		switch c {
		case models.FeatureDemand:
			v[i] = math.Min(2.0, buyerQty/10.0)
		case models.FeatureSupply:
			v[i] = math.Min(2.0, sellerQty/20.0)
		default:
			v[i], _ = w.Feature(c)
		}
	}
	return v
}
