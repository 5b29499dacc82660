package models

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQualityIndex walks each band of the scoring rubric
func TestQualityIndex(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		rain     float64
		humidity float64
		wind     float64
		want     float64
	}{
		{"ideal conditions clamp to 100", 22, 0, 55, 5, 100},
		{"every penalty applied", 40, 100, 20, 25, 40},
		{"mild temperature band", 12, 0, 75, 0, 90},
		{"upper mild temperature band", 32, 0, 75, 0, 90},
		{"cold extreme", 5, 0, 75, 0, 80},
		{"half rain chance", 20, 50, 75, 0, 92.5},
		{"humid", 20, 0, 85, 0, 90},
		{"dry", 20, 0, 25, 0, 90},
		{"humidity between bands", 20, 0, 35, 0, 100},
		{"breezy", 20, 0, 75, 15, 95},
		{"windy", 20, 0, 75, 21, 85},
		{"band edges are inclusive", 10, 0, 40, 10, 100},
		{"temperature edge 35 is mild", 35, 0, 70, 20, 95},
		{"worst case never negative", -30, 100, 99, 80, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualityIndex(tt.temp, tt.rain, tt.humidity, tt.wind)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQualityIndex_AlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		temp := rng.Float64()*120 - 50
		rain := rng.Float64() * 300
		humidity := rng.Float64()*140 - 20
		wind := rng.Float64() * 200

		q := QualityIndex(temp, rain, humidity, wind)
		require.GreaterOrEqual(t, q, 0.0)
		require.LessOrEqual(t, q, 100.0)
	}
}

func TestNewWeatherSnapshot(t *testing.T) {
	at := time.Date(2024, 3, 1, 6, 30, 0, 0, time.FixedZone("IST", 19800))
	w := NewWeatherSnapshot(40, 100, 20, 25, at)

	assert.Equal(t, 40.0, w.WeatherQualityIndex)
	assert.Equal(t, time.UTC, w.Timestamp.Location())
	assert.True(t, w.Timestamp.Equal(at))

	v, ok := w.Feature(FeatureWindSpeed)
	assert.True(t, ok)
	assert.Equal(t, 25.0, v)

	_, ok = w.Feature(FeatureDemand)
	assert.False(t, ok)

	var missing *WeatherSnapshot
	_, ok = missing.Feature(FeatureTemperature)
	assert.False(t, ok)
}

func TestNewDatasetRow_EstimatedPriceScalesByQuality(t *testing.T) {
	w := NewWeatherSnapshot(40, 100, 20, 25, time.Now())
	row := NewDatasetRow("2024-03-01", "Salem", "Onion", w, 50, 1.2, 0.8)

	assert.InDelta(t, 20.0, row.EstimatedPrice, 1e-9)
	assert.Equal(t, w.WeatherQualityIndex, row.WeatherQualityIndex)

	for _, col := range ModelFeatures {
		_, ok := row.Value(col)
		assert.True(t, ok, col)
	}
	_, ok := row.Value("unknown")
	assert.False(t, ok)
	assert.False(t, math.IsNaN(row.EstimatedPrice))
}

func TestCityRegistry(t *testing.T) {
	reg := DefaultCities()

	require.Equal(t, 10, reg.Len())
	assert.Equal(t, "Coimbatore", reg.Names()[0])
	assert.Equal(t, "Udumalpet", reg.Names()[9])

	c, ok := reg.Lookup("Madurai")
	require.True(t, ok)
	assert.Equal(t, 9.9252, c.Latitude)

	_, ok = reg.Lookup("Chennai")
	assert.False(t, ok)

	_, ok = reg.Lookup("coimbatore")
	assert.False(t, ok, "lookups are exact")
}

func TestCityRegistry_IgnoresDuplicates(t *testing.T) {
	reg := NewCityRegistry([]City{
		{Name: "A", Latitude: 1},
		{Name: "B", Latitude: 2},
		{Name: "A", Latitude: 3},
	})

	assert.Equal(t, []string{"A", "B"}, reg.Names())
	a, _ := reg.Lookup("A")
	assert.Equal(t, 1.0, a.Latitude)
}

func TestDataset_Cities(t *testing.T) {
	ds := &Dataset{Rows: []DatasetRow{
		{City: "Salem"}, {City: "Salem"}, {City: "Erode"}, {City: "Salem"},
	}}
	assert.Equal(t, []string{"Salem", "Erode"}, ds.Cities())
}

func TestTypedErrors(t *testing.T) {
	v := &ValidationError{Field: "crop", Message: "crop parameter required"}
	assert.Equal(t, "crop parameter required", v.Error())
	assert.False(t, v.IsTransient())

	nf := &NotFoundError{Resource: "city", ID: "Chennai"}
	assert.Equal(t, "city not found: Chennai", nf.Error())
	assert.False(t, nf.IsTransient())
}
