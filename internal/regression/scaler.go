package regression

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler rescales each feature to zero mean and unit variance
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitStandardScaler learns per-column mean and population standard deviation.
// Constant columns get a scale of 1 so they map to 0.
func FitStandardScaler(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty matrix")
	}
	width := len(x[0])
	s := &StandardScaler{
		Mean:  make([]float64, width),
		Scale: make([]float64, width),
	}

	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i, row := range x {
			if len(row) != width {
				return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Transform returns a scaled copy of a single feature vector
func (s *StandardScaler) Transform(v []float64) ([]float64, error) {
	if len(v) != len(s.Mean) {
		return nil, fmt.Errorf("feature vector has %d values, scaler expects %d", len(v), len(s.Mean))
	}
	out := make([]float64, len(v))
	for j, x := range v {
		out[j] = (x - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row of x
func (s *StandardScaler) TransformAll(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
