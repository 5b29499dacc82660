package models

import "time"

// Defaults applied by the price predictor
const (
	DefaultBuyerQty   = 1.0
	DefaultSellerQty  = 5.0
	FallbackBasePrice = 40.0
	NeutralQuality    = 50.0
)

// PriceQuote is the result of a price prediction
type PriceQuote struct {
	Crop                string           `json:"crop"`
	City                string           `json:"city"`
	BasePrice           float64          `json:"base_price"`
	PredictedPrice      float64          `json:"predicted_price"`
	Multiplier          float64          `json:"multiplier"`
	WeatherQualityIndex float64          `json:"weather_quality_index"`
	Weather             *WeatherSnapshot `json:"weather"`
	BuyerQty            float64          `json:"buyer_qty"`
	SellerQty           float64          `json:"seller_qty"`
	ModelUsed           bool             `json:"model_used"`
	Timestamp           time.Time        `json:"timestamp"`
}

// CityWeatherView pairs a city with its weather, which may be unavailable
type CityWeatherView struct {
	City    string           `json:"city"`
	Weather *WeatherSnapshot `json:"weather"`
}

// DatasetMeta summarises the current dataset for the weather snapshot view
type DatasetMeta struct {
	LastRefreshed  *time.Time `json:"last_refreshed"`
	GeneratedCSV   string     `json:"generated_csv"`
	ModelAvailable bool       `json:"model_available"`
}

// WeatherOverview is the all-cities weather view
type WeatherOverview struct {
	Locations          []CityWeatherView `json:"locations"`
	AvailableLocations []string          `json:"available_locations"`
	GeneratedAt        time.Time         `json:"generated_at"`
	DatasetMeta        DatasetMeta       `json:"dataset_meta"`
	BaseMarket         string            `json:"base_market"`
}

// DatasetStatus reports refresh timing and model readiness
type DatasetStatus struct {
	AvailableLocations []string   `json:"available_locations"`
	LastRefreshed      *time.Time `json:"last_refreshed"`
	GeneratedCSV       string     `json:"generated_csv"`
	ModelReady         bool       `json:"model_ready"`
}
