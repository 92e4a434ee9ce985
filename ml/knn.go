package ml

import (
	"errors"
	"runtime"
	"sort"
	"sync"
)

// DefaultMaxNeighbors is the upper bound for k when no limit is configured.
const DefaultMaxNeighbors = 20

// KNN is a k-nearest-neighbors classifier with uniform weights and Euclidean
// distance. Fit only stores the training set.
type KNN struct {
	K int         `json:"k"`
	X [][]float64 `json:"x"`
	Y []int       `json:"y"`
}

// NewKNN creates an unfitted KNN model.
func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

// Fit stores the training data.
func (m *KNN) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return errors.New("the number of feature vectors must match the number of labels")
	}
	if m.K < 1 || m.K > len(X) {
		// k cannot exceed the number of training samples
		return &ParamError{Name: "k", Value: m.K, Min: 1, Max: len(X)}
	}
	m.X = X
	m.Y = y
	return nil
}

// PredictProba returns the share of each class among the k nearest training
// rows. Rows are scored in parallel.
func (m *KNN) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.X) == 0 {
		return nil, errors.New("model not trained")
	}
	dim := len(m.X[0])
	for _, row := range X {
		if len(row) != dim {
			return nil, &FeatureMismatchError{Expected: dim, Got: len(row)}
		}
	}

	out := make([][]float64, len(X))
	if len(X) == 0 {
		return out, nil
	}

	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(X) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, len(X))
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				out[i] = m.probaSingle(X[i])
			}
		}(start, end)
	}
	wg.Wait()
	return out, nil
}

// Predict returns the majority class; ties go to class 0.
func (m *KNN) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmax(proba), nil
}

func (m *KNN) probaSingle(xi []float64) []float64 {
	type neighbor struct {
		d   float64
		idx int
	}
	nbrs := make([]neighbor, len(m.X))
	for j, xj := range m.X {
		nbrs[j] = neighbor{d: euclidSquared(xi, xj), idx: j}
	}
	// equal distances resolve by training order
	sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })

	ones := 0
	for _, n := range nbrs[:m.K] {
		if m.Y[n.idx] == 1 {
			ones++
		}
	}
	p1 := float64(ones) / float64(m.K)
	return []float64{1 - p1, p1}
}

// euclidSquared is the squared Euclidean distance; the ordering is the same
// as for the true distance.
func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
