// Package openmeteo fetches current conditions from the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"farmfresh-backend/internal/models"
)

// DefaultBaseURL is the public Open-Meteo endpoint
const DefaultBaseURL = "https://api.open-meteo.com"

// ErrMissingTemperature is returned when current_weather has no temperature
var ErrMissingTemperature = errors.New("forecast payload has no current temperature")

// Config configures the client
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables limiting
	Burst         int
}

// Client calls the forecast endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates a forecast client
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		now:        time.Now,
	}
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		WindSpeed   *float64 `json:"windspeed"`
		WindSpeedV2 *float64 `json:"wind_speed"`
	} `json:"current_weather"`
	Hourly *struct {
		Humidity      []float64 `json:"relative_humidity_2m"`
		Precipitation []float64 `json:"precipitation_probability"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// Current returns the current weather snapshot at a coordinate.
// Any transport, status or payload problem is returned as an error.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL(lat, lon), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast API returned status %d", resp.StatusCode)
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload.snapshot(c.now())
}

func (c *Client) forecastURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	q.Set("hourly", "relative_humidity_2m,precipitation_probability,wind_speed_10m")
	q.Set("timezone", "UTC")
	return c.baseURL + "/v1/forecast?" + q.Encode()
}

func (p *forecastResponse) snapshot(at time.Time) (*models.WeatherSnapshot, error) {
	if p.CurrentWeather == nil || p.CurrentWeather.Temperature == nil {
		return nil, ErrMissingTemperature
	}

	temp := *p.CurrentWeather.Temperature
	humidity := models.DefaultHumidityPct
	rain := models.DefaultRainChancePct

	var wind *float64
	switch {
	case p.CurrentWeather.WindSpeed != nil:
		wind = p.CurrentWeather.WindSpeed
	case p.CurrentWeather.WindSpeedV2 != nil:
		wind = p.CurrentWeather.WindSpeedV2
	}

	if p.Hourly != nil {
		if len(p.Hourly.Humidity) > 0 {
			humidity = p.Hourly.Humidity[0]
		}
		if len(p.Hourly.Precipitation) > 0 {
			rain = p.Hourly.Precipitation[0]
		}
		if wind == nil && len(p.Hourly.WindSpeed) > 0 {
			wind = &p.Hourly.WindSpeed[0]
		}
	}

	windSpeed := 0.0
	if wind != nil {
		windSpeed = *wind
	}

	return models.NewWeatherSnapshot(temp, rain, humidity, windSpeed, at), nil
}
