package regression

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ForestConfig controls random forest training
type ForestConfig struct {
	Trees           int
	Seed            int64
	MaxDepth        int // 0 means grow until leaves are pure
	MinSamplesSplit int
}

// DefaultForestConfig matches the price model: 50 trees, seed 42
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 50, Seed: 42, MinSamplesSplit: 2}
}

// Forest is a bagged ensemble of regression trees
type Forest struct {
	trees []*tree
	width int
}

// FitForest trains a forest on x (rows × features) against y.
// Each tree sees a bootstrap sample; all features are considered at every split.
func FitForest(x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) differ", len(x), len(y))
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", cfg.Trees)
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{width: width}
	n := len(x)
	for t := 0; t < cfg.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, growTree(x, y, sample, cfg))
	}
	return f, nil
}

// Predict averages the trees' predictions for one feature vector
func (f *Forest) Predict(v []float64) (float64, error) {
	if len(v) != f.width {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(v), f.width)
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(v)
	}
	return sum / float64(len(f.trees)), nil
}

// Size returns the number of trees
func (f *Forest) Size() int {
	return len(f.trees)
}

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type tree struct {
	nodes []node
}

func (t *tree) predict(v []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if v[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

func growTree(x [][]float64, y []float64, sample []int, cfg ForestConfig) *tree {
	t := &tree{}
	t.split(x, y, sample, 0, cfg)
	return t
}

// split appends the node for idx and returns its position
func (t *tree) split(x [][]float64, y []float64, idx []int, depth int, cfg ForestConfig) int {
	pos := len(t.nodes)
	t.nodes = append(t.nodes, node{leaf: true, value: mean(y, idx)})

	if len(idx) < cfg.MinSamplesSplit || (cfg.MaxDepth > 0 && depth >= cfg.MaxDepth) || pure(y, idx) {
		return pos
	}

	feature, threshold, ok := bestSplit(x, y, idx)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.split(x, y, left, depth+1, cfg)
	r := t.split(x, y, right, depth+1, cfg)
	t.nodes[pos] = node{feature: feature, threshold: threshold, left: l, right: r}
	return pos
}

// bestSplit finds the feature/threshold minimising summed squared error
func bestSplit(x [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	width := len(x[idx[0]])
	order := make([]int, n)

	bestFeature, bestThreshold := -1, 0.0
	bestSSE := sse(y, idx)
	found := false

	for j := 0; j < width; j++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][j] < x[order[b]][j] })

		totalSum, totalSq := 0.0, 0.0
		for _, i := range order {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < n-1; k++ {
			yi := y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := x[order[k]][j], x[order[k+1]][j]
			if lo == hi {
				continue
			}

			nl, nr := float64(k+1), float64(n-k-1)
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			cost := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if cost < bestSSE-1e-12 {
				bestSSE = cost
				bestFeature = j
				bestThreshold = lo + (hi-lo)/2
				// Adjacent floats round the midpoint up to hi, which would put every row on the left
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func mean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func sse(y []float64, idx []int) float64 {
	m := mean(y, idx)
	s := 0.0
	for _, i := range idx {
		d := y[i] - m
		s += d * d
	}
	return s
}

func pure(y []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			return false
		}
	}
	return true
}
