package openmeteo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch b := body.(type) {
		case string:
			w.Write([]byte(b))
		default:
			json.NewEncoder(w).Encode(b)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Current(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		var query string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			json.NewEncoder(w).Encode(map[string]interface{}{
				"current_weather": map[string]interface{}{"temperature": 22.0, "windspeed": 5.0},
				"hourly": map[string]interface{}{
					"relative_humidity_2m":      []float64{55, 60},
					"precipitation_probability": []float64{0, 10},
					"wind_speed_10m":            []float64{30},
				},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
		w, err := client.Current(context.Background(), 11.0168, 76.9558)
		require.NoError(t, err)

		assert.Contains(t, query, "latitude=11.0168")
		assert.Contains(t, query, "longitude=76.9558")
		assert.Contains(t, query, "current_weather=true")
		assert.Contains(t, query, "timezone=UTC")

		assert.Equal(t, 22.0, w.TemperatureC)
		assert.Equal(t, 5.0, w.WindSpeedKph, "current wind wins over hourly")
		assert.Equal(t, 55.0, w.HumidityPct)
		assert.Equal(t, 0.0, w.RainChancePct)
		assert.Equal(t, 100.0, w.WeatherQualityIndex)
		assert.False(t, w.Timestamp.IsZero())
	})

	t.Run("missing hourly data uses fallbacks", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, map[string]interface{}{
			"current_weather": map[string]interface{}{"temperature": 40.0, "windspeed": 25.0},
		})

		w, err := NewClient(Config{BaseURL: server.URL}).Current(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 50.0, w.HumidityPct)
		assert.Equal(t, 0.0, w.RainChancePct)
		assert.Equal(t, 65.0, w.WeatherQualityIndex)
	})

	t.Run("hourly wind used when current wind absent", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, map[string]interface{}{
			"current_weather": map[string]interface{}{"temperature": 20.0},
			"hourly": map[string]interface{}{
				"relative_humidity_2m":      []float64{},
				"precipitation_probability": []float64{40},
				"wind_speed_10m":            []float64{12},
			},
		})

		w, err := NewClient(Config{BaseURL: server.URL}).Current(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 12.0, w.WindSpeedKph)
		assert.Equal(t, 40.0, w.RainChancePct)
		assert.Equal(t, 50.0, w.HumidityPct)
	})

	t.Run("API error response", func(t *testing.T) {
		server := newTestServer(t, http.StatusServiceUnavailable, map[string]string{"reason": "down"})

		w, err := NewClient(Config{BaseURL: server.URL}).Current(context.Background(), 1, 2)
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, "invalid json")

		w, err := NewClient(Config{BaseURL: server.URL}).Current(context.Background(), 1, 2)
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.Contains(t, err.Error(), "failed to decode response")
	})

	t.Run("missing temperature", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, map[string]interface{}{
			"current_weather": map[string]interface{}{"windspeed": 3.0},
		})

		_, err := NewClient(Config{BaseURL: server.URL}).Current(context.Background(), 1, 2)
		assert.ErrorIs(t, err, ErrMissingTemperature)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		_, err := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}).Current(context.Background(), 1, 2)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, map[string]interface{}{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewClient(Config{BaseURL: server.URL, RatePerSecond: 1}).Current(ctx, 1, 2)
		assert.Error(t, err)
	})
}
