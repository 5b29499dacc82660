package regression

import (
	"errors"
	"fmt"
	"math"
)

// Training requirements for the price model
const (
	MinFeatureColumns = 3
	MinTrainingRows   = 10
)

var (
	ErrInsufficientFeatures = errors.New("not enough feature columns to train")
	ErrInsufficientRows     = errors.New("not enough complete rows to train")
	ErrNoTarget             = errors.New("no target column present")
)

// Table is a column-named numeric matrix; NaN marks a missing value.
type Table struct {
	Columns []string
	Rows    [][]float64
}

func (t *Table) index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// TrainSpec describes which columns a model learns from
type TrainSpec struct {
	Features []string // candidate feature columns in canonical order
	Targets  []string // target columns in order of preference
	Forest   ForestConfig
}

// Model is a fitted scaler + forest over a fixed feature order
type Model struct {
	Features []string
	Target   string
	Rows     int
	scaler   *StandardScaler
	forest   *Forest
}

// Train fits a model from t. Features missing from the table are skipped;
// rows with a NaN in any used column are dropped.
func Train(t *Table, spec TrainSpec) (m *Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("training panicked: %v", r)
		}
	}()

	var cols []int
	var names []string
	for _, f := range spec.Features {
		if i := t.index(f); i >= 0 {
			cols = append(cols, i)
			names = append(names, f)
		}
	}
	if len(cols) < MinFeatureColumns {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFeatures, len(cols), MinFeatureColumns)
	}

	target, targetCol := "", -1
	for _, name := range spec.Targets {
		if i := t.index(name); i >= 0 {
			target, targetCol = name, i
			break
		}
	}
	if targetCol < 0 {
		return nil, ErrNoTarget
	}

	var x [][]float64
	var y []float64
	for _, row := range t.Rows {
		if len(row) != len(t.Columns) || math.IsNaN(row[targetCol]) {
			continue
		}
		v := make([]float64, len(cols))
		complete := true
		for k, c := range cols {
			if math.IsNaN(row[c]) {
				complete = false
				break
			}
			v[k] = row[c]
		}
		if complete {
			x = append(x, v)
			y = append(y, row[targetCol])
		}
	}
	if len(x) < MinTrainingRows {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientRows, len(x), MinTrainingRows)
	}

	scaler, err := FitStandardScaler(x)
	if err != nil {
		return nil, err
	}
	xs, err := scaler.TransformAll(x)
	if err != nil {
		return nil, err
	}
	forest, err := FitForest(xs, y, spec.Forest)
	if err != nil {
		return nil, err
	}

	return &Model{
		Features: names,
		Target:   target,
		Rows:     len(x),
		scaler:   scaler,
		forest:   forest,
	}, nil
}

// Predict scales v (ordered as m.Features) and returns the forest estimate
func (m *Model) Predict(v []float64) (float64, error) {
	scaled, err := m.scaler.Transform(v)
	if err != nil {
		return 0, err
	}
	return m.forest.Predict(scaled)
}
