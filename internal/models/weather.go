package models

import (
	"math"
	"time"
)

// Fallbacks used when the forecast payload has no hourly entries.
const (
	DefaultHumidityPct   = 50.0
	DefaultRainChancePct = 0.0
)

// WeatherSnapshot is the latest observed weather for a city
type WeatherSnapshot struct {
	TemperatureC        float64   `json:"temperature_c" bson:"temperature_c"`
	RainChancePct       float64   `json:"rain_chance_pct" bson:"rain_chance_pct"`
	HumidityPct         float64   `json:"humidity_pct" bson:"humidity_pct"`
	WindSpeedKph        float64   `json:"wind_speed_kph" bson:"wind_speed_kph"`
	WeatherQualityIndex float64   `json:"weather_quality_index" bson:"weather_quality_index"`
	Timestamp           time.Time `json:"timestamp" bson:"timestamp"`
}

// NewWeatherSnapshot builds a snapshot and computes its quality index
func NewWeatherSnapshot(temp, rainChance, humidity, windSpeed float64, at time.Time) *WeatherSnapshot {
	return &WeatherSnapshot{
		TemperatureC:        temp,
		RainChancePct:       rainChance,
		HumidityPct:         humidity,
		WindSpeedKph:        windSpeed,
		WeatherQualityIndex: QualityIndex(temp, rainChance, humidity, windSpeed),
		Timestamp:           at.UTC(),
	}
}

// Feature returns the snapshot value for a model feature column.
// ok is false for columns that are not weather-derived.
func (w *WeatherSnapshot) Feature(column string) (value float64, ok bool) {
	if w == nil {
		return 0, false
	}
	switch column {
	case FeatureTemperature:
		return w.TemperatureC, true
	case FeatureRainChance:
		return w.RainChancePct, true
	case FeatureHumidity:
		return w.HumidityPct, true
	case FeatureWindSpeed:
		return w.WindSpeedKph, true
	}
	return 0, false
}

// QualityIndex scores how favourable conditions are for price stability, in [0,100].
//
//	temperature outside 10..35 → -20, else outside 15..30 → -10
//	rain chance                → -(rain/100)*15
//	humidity within 40..70     → +10, else above 80 or below 30 → -10
//	wind above 20 kph          → -15, else above 10 kph → -5
func QualityIndex(temp, rainChance, humidity, windSpeed float64) float64 {
	score := 100.0

	switch {
	case temp < 10 || temp > 35:
		score -= 20
	case temp < 15 || temp > 30:
		score -= 10
	}

	score -= (rainChance / 100.0) * 15

	switch {
	case humidity >= 40 && humidity <= 70:
		score += 10
	case humidity > 80 || humidity < 30:
		score -= 10
	}

	switch {
	case windSpeed > 20:
		score -= 15
	case windSpeed > 10:
		score -= 5
	}

	return math.Max(0, math.Min(100, score))
}
