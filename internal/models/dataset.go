package models

import "time"

// Crops sampled for every city on each dataset refresh
var Crops = []string{"Tomato", "Carrot", "Potato", "Onion", "Capsicum"}

// Feature and target column names shared by the dataset file and the price model.
const (
	FeatureTemperature = "temperature_c"
	FeatureRainChance  = "rain_chance_pct"
	FeatureHumidity    = "humidity_pct"
	FeatureWindSpeed   = "wind_speed_kph"
	FeatureDemand      = "demand_index"
	FeatureSupply      = "supply_index"

	ColumnBasePrice      = "base_price"
	ColumnEstimatedPrice = "estimated_price"
)

// ModelFeatures is the canonical feature order for price prediction
var ModelFeatures = []string{
	FeatureTemperature,
	FeatureRainChance,
	FeatureHumidity,
	FeatureWindSpeed,
	FeatureDemand,
	FeatureSupply,
}

// DatasetRow is one (date, city, crop) market observation
type DatasetRow struct {
	Date                string    `json:"date" db:"snapshot_date"`
	City                string    `json:"city" db:"city"`
	Crop                string    `json:"crop" db:"crop"`
	TemperatureC        float64   `json:"temperature_c" db:"temperature_c"`
	RainChancePct       float64   `json:"rain_chance_pct" db:"rain_chance_pct"`
	HumidityPct         float64   `json:"humidity_pct" db:"humidity_pct"`
	WindSpeedKph        float64   `json:"wind_speed_kph" db:"wind_speed_kph"`
	WeatherQualityIndex float64   `json:"weather_quality_index" db:"weather_quality_index"`
	Timestamp           time.Time `json:"timestamp" db:"observed_at"`
	BasePrice           float64   `json:"base_price" db:"base_price"`
	DemandIndex         float64   `json:"demand_index" db:"demand_index"`
	SupplyIndex         float64   `json:"supply_index" db:"supply_index"`
	EstimatedPrice      float64   `json:"estimated_price" db:"estimated_price"`
}

// NewDatasetRow combines a weather snapshot with sampled market values.
// EstimatedPrice is always BasePrice scaled by quality/100.
func NewDatasetRow(date, city, crop string, w *WeatherSnapshot, basePrice, demand, supply float64) DatasetRow {
	return DatasetRow{
		Date:                date,
		City:                city,
		Crop:                crop,
		TemperatureC:        w.TemperatureC,
		RainChancePct:       w.RainChancePct,
		HumidityPct:         w.HumidityPct,
		WindSpeedKph:        w.WindSpeedKph,
		WeatherQualityIndex: w.WeatherQualityIndex,
		Timestamp:           w.Timestamp,
		BasePrice:           basePrice,
		DemandIndex:         demand,
		SupplyIndex:         supply,
		EstimatedPrice:      basePrice * (w.WeatherQualityIndex / 100.0),
	}
}

// Value returns the numeric value of a named column
func (r DatasetRow) Value(column string) (float64, bool) {
	switch column {
	case FeatureTemperature:
		return r.TemperatureC, true
	case FeatureRainChance:
		return r.RainChancePct, true
	case FeatureHumidity:
		return r.HumidityPct, true
	case FeatureWindSpeed:
		return r.WindSpeedKph, true
	case FeatureDemand:
		return r.DemandIndex, true
	case FeatureSupply:
		return r.SupplyIndex, true
	case ColumnBasePrice:
		return r.BasePrice, true
	case ColumnEstimatedPrice:
		return r.EstimatedPrice, true
	case "weather_quality_index":
		return r.WeatherQualityIndex, true
	}
	return 0, false
}

// Dataset is the full snapshot produced by one refresh.
// It is never mutated after generation.
type Dataset struct {
	Date        string       `json:"date"`
	GeneratedAt time.Time    `json:"generated_at"`
	Rows        []DatasetRow `json:"rows"`
}

// Cities returns the distinct cities present, in row order
func (d *Dataset) Cities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Rows {
		if !seen[r.City] {
			seen[r.City] = true
			out = append(out, r.City)
		}
	}
	return out
}

// CityWeather is one city's entry in the daily snapshot document
type CityWeather struct {
	City            string `json:"city" bson:"city"`
	WeatherSnapshot `bson:",inline"`
}

// DailySnapshot is the per-date document upserted into the snapshot store
type DailySnapshot struct {
	Date        string        `json:"date" bson:"date"`
	GeneratedAt time.Time     `json:"generated_at" bson:"generated_at"`
	Cities      []CityWeather `json:"cities" bson:"cities"`
}
